package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default file locations, relative to the working directory like the
// deployed clients expect.
const (
	DefaultServerInfoPath = "server.info"
	DefaultClientInfoPath = "my.info"
	DefaultHistoryPath    = "messageu.db"
	DefaultSettingsPath   = "messageu.yaml"
	DefaultGatewayPort    = 8600
)

// Duration wraps time.Duration with YAML decoding of forms like "5s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Settings is the optional overlay configuration. Every field has a
// working default; a missing settings file is not an error.
type Settings struct {
	ServerInfoPath string   `yaml:"server_info"`
	ClientInfoPath string   `yaml:"client_info"`
	HistoryPath    string   `yaml:"history_db"`
	GatewayPort    int      `yaml:"gateway_port"`
	DialTimeout    Duration `yaml:"dial_timeout"`
}

// DefaultSettings returns the built-in defaults
func DefaultSettings() Settings {
	return Settings{
		ServerInfoPath: DefaultServerInfoPath,
		ClientInfoPath: DefaultClientInfoPath,
		HistoryPath:    DefaultHistoryPath,
		GatewayPort:    DefaultGatewayPort,
	}
}

// LoadSettings reads the YAML settings file, filling unset fields with
// defaults. A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, ErrConfigMalformed
	}

	if err := yaml.Unmarshal(raw, &s); err != nil {
		return DefaultSettings(), ErrConfigMalformed
	}

	if s.ServerInfoPath == "" {
		s.ServerInfoPath = DefaultServerInfoPath
	}
	if s.ClientInfoPath == "" {
		s.ClientInfoPath = DefaultClientInfoPath
	}
	if s.HistoryPath == "" {
		s.HistoryPath = DefaultHistoryPath
	}
	if s.GatewayPort == 0 {
		s.GatewayPort = DefaultGatewayPort
	}

	return s, nil
}
