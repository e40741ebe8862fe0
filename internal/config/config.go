// Package config handles zoebot configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/zoebot/config.yaml, /etc/zoebot/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "zoebot", "config.yaml"))
	}

	paths = append(paths, "/etc/zoebot/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all zoebot configuration.
type Config struct {
	Slack     SlackConfig     `yaml:"slack"`
	AI        AIConfig        `yaml:"ai"`
	Vector    VectorConfig    `yaml:"vector"`
	CDN       CDNConfig       `yaml:"cdn"`
	Search    SearchConfig    `yaml:"search"`
	Hackatime HackatimeConfig `yaml:"hackatime"`
	Reminders RemindersConfig `yaml:"reminders"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// SlackConfig defines the chat platform connection.
type SlackConfig struct {
	// BotToken authenticates Web API calls (xoxb-).
	BotToken string `yaml:"bot_token"`
	// AppToken authenticates the Socket Mode connection (xapp-).
	AppToken string `yaml:"app_token"`
	// UserID is the single owning user this deployment serves.
	UserID string `yaml:"user_id"`
	// ChannelID is the public announcement (yapping) channel.
	ChannelID string `yaml:"channel_id"`
}

// AIConfig defines the completion/embedding proxy settings.
type AIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	SummaryModel   string `yaml:"summary_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// VectorConfig defines the external vector index connection.
type VectorConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// CDNConfig defines the storage bucket backing the cdn_* tools.
type CDNConfig struct {
	Endpoint  string `yaml:"endpoint"`
	ProjectID string `yaml:"project_id"`
	APIKey    string `yaml:"api_key"`
	BucketID  string `yaml:"bucket_id"`
	// PublicBaseURL is the base for shareable file URLs
	// (e.g. https://cdn.isitzoe.dev).
	PublicBaseURL string `yaml:"public_base_url"`
}

// SearchConfig defines the web search proxy.
type SearchConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// HackatimeConfig defines the coding stats API.
type HackatimeConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	UserID  string `yaml:"user_id"`
}

// RemindersConfig defines reminder scheduling behavior.
type RemindersConfig struct {
	// Timezone is the reference zone for datetime inputs that carry no
	// explicit offset (IANA name).
	Timezone string `yaml:"timezone"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			BaseURL:        "https://ai.hackclub.com/proxy/v1",
			Model:          "google/gemini-2.5-flash-preview",
			SummaryModel:   "google/gemini-2.5-flash-preview",
			EmbeddingModel: "openai/text-embedding-3-small",
			MaxTokens:      1024,
		},
		Search: SearchConfig{
			BaseURL: "https://search.hackclub.com/res/v1",
		},
		Hackatime: HackatimeConfig{
			BaseURL: "https://hackatime.hackclub.com/api/v1",
		},
		Reminders: RemindersConfig{
			Timezone: "Europe/Madrid",
		},
		DataDir: "data",
	}
}
