package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// config is the CLI configuration stored in ~/.config/itplay/config.json.
// The command line flags override it.
type config struct {
	SampleRate int     `json:"sampleRate,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Voices     int     `json:"voices,omitempty"`

	// Backend is "ebiten" or "oto".
	Backend string `json:"backend,omitempty"`

	NoLoop bool `json:"noLoop,omitempty"`
}

func defaultConfig() *config {
	return &config{
		SampleRate: 44100,
		Volume:     0.8,
		Voices:     64,
		Backend:    "ebiten",
	}
}

func configDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "itplay"), nil
}

// configPath returns the explicit path (with ~ expanded) or the default one.
func configPath(explicit string) (string, error) {
	if explicit != "" {
		return homedir.Expand(explicit)
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// loadConfig reads the config from disk, or returns defaults if not found.
func loadConfig(explicit string) (*config, error) {
	path, err := configPath(explicit)
	if err != nil {
		return defaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && explicit == "" {
			return defaultConfig(), nil
		}
		return nil, err
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) save(explicit string) error {
	path, err := configPath(explicit)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
