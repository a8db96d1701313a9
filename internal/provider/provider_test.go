package provider

import "testing"

func TestRegisterAndBuild(t *testing.T) {
	Register("fake-provider", func(cfg Config) Adapter {
		return nil
	})
	if _, err := Build("fake-provider", Config{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuildUnknownProvider(t *testing.T) {
	if _, err := Build("does-not-exist", Config{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
