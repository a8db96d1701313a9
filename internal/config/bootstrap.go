package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bootstrap is the subset of config.yaml that must be readable before
// the viper layer exists: the data directory can itself be set in a
// config file, but Load needs the data directory to find that file.
// Reading these keys directly breaks the circularity.
//
// Returns are best-effort: a missing or unparseable file yields the
// zero value, never an error.
type Bootstrap struct {
	DataDir string `yaml:"data-dir"`
	DBName  string `yaml:"db-name"`
}

// LoadBootstrap reads config.yaml from dir without going through viper.
func LoadBootstrap(dir string) *Bootstrap {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return &Bootstrap{}
	}
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return &Bootstrap{}
	}
	return &b
}
