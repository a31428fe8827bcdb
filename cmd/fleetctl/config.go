package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CLIConfig lives at ~/.fleetadmin/config.yaml. The session token from the
// last login is kept here, which is why the file is written 0600.
type CLIConfig struct {
	Address   string `yaml:"address"`
	Token     string `yaml:"token"`
	TLSCACert string `yaml:"tls_ca_cert"`
}

var cfg CLIConfig

func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fleetadmin", "config.yaml")
}

// loadConfig reads the config file, falling back to the local dev server
// address when none exists. FLEETADMIN_* env vars override later in
// newClient.
func loadConfig() {
	cfg = CLIConfig{
		Address: "http://127.0.0.1:8300",
	}
	data, err := os.ReadFile(configPath())
	if err != nil {
		return
	}
	yaml.Unmarshal(data, &cfg) //nolint:errcheck
}

// saveConfig writes the config back, creating ~/.fleetadmin on first use.
func saveConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
