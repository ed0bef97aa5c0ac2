// Package config loads server configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig holds storage locations.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// ModelConfig holds language-model settings.
type ModelConfig struct {
	Name      string `yaml:"name"`
	MaxTokens int64  `yaml:"max_tokens"`
	System    string `yaml:"system"`
}

// EmbeddingConfig selects the embedding provider for the vector index.
// An empty provider disables embeddings (keyword search fallback).
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// MemoryConfig tunes the document memory store.
type MemoryConfig struct {
	FragmentSize int `yaml:"fragment_size"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Data:  DataConfig{Dir: "data"},
		Model: ModelConfig{MaxTokens: 1024},
	}
}

// Load reads the config file at path, layering it over defaults and then
// applying environment overrides. A missing file is not an error; the
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENT_CHAT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENT_CHAT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("AGENT_CHAT_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("AGENT_CHAT_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("AGENT_CHAT_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("AGENT_CHAT_EMBED_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
}
