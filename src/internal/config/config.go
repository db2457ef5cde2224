package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Port        string `json:"port" yaml:"port"`
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	// DevMode swaps Postgres and R2 for in-memory adapters.
	DevMode bool   `json:"dev_mode" yaml:"dev_mode"`
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	R2         R2Config         `json:"r2" yaml:"r2"`
	Gemini     GeminiConfig     `json:"gemini" yaml:"gemini"`
	WAN        WANConfig        `json:"wan" yaml:"wan"`
	ElevenLabs ElevenLabsConfig `json:"elevenlabs" yaml:"elevenlabs"`
	OIDC       OIDCConfig       `json:"oidc" yaml:"oidc"`

	// ReaperIntervalMinutes controls how often expired sessions are swept.
	ReaperIntervalMinutes int `json:"reaper_interval_minutes" yaml:"reaper_interval_minutes"`
	// GenerationTickSeconds paces the simulated generation pipeline.
	GenerationTickSeconds int `json:"generation_tick_seconds" yaml:"generation_tick_seconds"`
}

type R2Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket"`
}

type GeminiConfig struct {
	APIKeys       []string `json:"api_keys" yaml:"api_keys"`
	Model         string   `json:"model" yaml:"model"`
	FallbackModel string   `json:"fallback_model" yaml:"fallback_model"`
}

type WANConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

type ElevenLabsConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	VoiceID string `json:"voice_id" yaml:"voice_id"`
}

type OIDCConfig struct {
	ProviderURL  string `json:"provider_url" yaml:"provider_url"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	RedirectURL  string `json:"redirect_url" yaml:"redirect_url"`
}

// Load loads the configuration from a file (YAML or JSON)
func Load(path string, cfg interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config file %s: %w", path, err)
		}
	} else {
		// Default to JSON for compatibility or other extensions
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config file %s: %w", path, err)
		}
	}

	return nil
}

// ApplyEnv overlays environment variables on top of whatever the file
// provided. Env wins so deployments can keep secrets out of the file.
func (c *ServerConfig) ApplyEnv() {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setIfPresent(&c.Port, "PORT")
	setIfPresent(&c.DatabaseURL, "DATABASE_URL")
	setIfPresent(&c.TempDir, "TEMP_DIR")
	setIfPresent(&c.R2.Endpoint, "CLOUDFLARE_API_ENDPOINT")
	setIfPresent(&c.R2.AccessKey, "CLOUDFLARE_ACCESS_KEY")
	setIfPresent(&c.R2.SecretKey, "CLOUDFLARE_SECRET_KEY")
	setIfPresent(&c.R2.Bucket, "R2_BUCKET")
	setIfPresent(&c.WAN.Endpoint, "WAN_ENDPOINT")
	setIfPresent(&c.WAN.APIKey, "WAN_API_KEY")
	setIfPresent(&c.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	setIfPresent(&c.ElevenLabs.VoiceID, "ELEVENLABS_VOICE_ID")
	setIfPresent(&c.OIDC.ProviderURL, "OIDC_PROVIDER_URL")
	setIfPresent(&c.OIDC.ClientID, "OIDC_CLIENT_ID")
	setIfPresent(&c.OIDC.ClientSecret, "OIDC_CLIENT_SECRET")

	// Numbered keys, matching the platform's rotation scheme.
	for _, key := range []string{"GEMINI_API_KEY_1", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3"} {
		if v := os.Getenv(key); v != "" {
			c.Gemini.APIKeys = append(c.Gemini.APIKeys, v)
		}
	}
	if os.Getenv("DEV_MODE") == "true" {
		c.DevMode = true
	}
}

// Defaults fills in anything still unset.
func (c *ServerConfig) Defaults() {
	if c.Port == "" {
		c.Port = "8001"
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "video_uploads")
	}
	if c.R2.Bucket == "" {
		c.R2.Bucket = "video-generation-bucket"
	}
	if c.ReaperIntervalMinutes <= 0 {
		c.ReaperIntervalMinutes = 60
	}
	if c.GenerationTickSeconds <= 0 {
		c.GenerationTickSeconds = 5
	}
}
