package tomed

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for tomed.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker      string     `toml:"broker"`
	Identity    string     `toml:"identity"`
	TopicBase   string     `toml:"topic_base"`
	LibraryPath string     `toml:"library_path"`
	LogLevel    string     `toml:"log_level"`
	LogFormat   string     `toml:"log_format"`
	LogOutput   string     `toml:"log_output"`
	LogSource   bool       `toml:"log_source"`
	LogUTC      bool       `toml:"log_utc"`
	LogColor    bool       `toml:"log_color"`
	Daemonize   bool       `toml:"daemonize"`
	TLS         TLSConfig  `toml:"tls"`
	Auth        AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Session      SessionConfig      `toml:"session"`
	FeedLibrary  FeedLibraryConfig  `toml:"feed_library"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// SessionConfig configures the player session module.
type SessionConfig struct {
	Enabled   bool   `toml:"enabled"`
	NodeID    string `toml:"node_id"`
	Name      string `toml:"name"`
	Strict    bool   `toml:"strict"`
	PrefsPath string `toml:"prefs_path"`
	Pipeline  string `toml:"pipeline"`
}

// FeedLibraryConfig configures the feed library module.
type FeedLibraryConfig struct {
	Enabled   bool     `toml:"enabled"`
	NodeID    string   `toml:"node_id"`
	Feeds     []string `toml:"feeds"`
	RefreshMS int64    `toml:"refresh_ms"`
	TimeoutMS int64    `toml:"timeout_ms"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tome", "tomed.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tome", "tomed.toml"), nil
}

// DefaultLibraryPath returns the default book library location.
func DefaultLibraryPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tome", "library"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "tome", "library"), nil
}
