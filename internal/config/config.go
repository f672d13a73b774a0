package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings are the runtime knobs of the wp binary.
type Settings struct {
	Server struct {
		Addr     string `mapstructure:"addr" yaml:"addr"`
		BasePath string `mapstructure:"base_path" yaml:"base_path"`
		// WriteRate limits mutating API requests per second; 0 disables it.
		WriteRate  float64 `mapstructure:"write_rate" yaml:"write_rate"`
		WriteBurst int     `mapstructure:"write_burst" yaml:"write_burst"`
	} `mapstructure:"server" yaml:"server"`
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		File   string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"log" yaml:"log"`
	Seed struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"seed" yaml:"seed"`
	Journal struct {
		DSN string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"journal" yaml:"journal"`
	Operator struct {
		Name string `mapstructure:"name" yaml:"name"`
	} `mapstructure:"operator" yaml:"operator"`
	Remote struct {
		URL string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"remote" yaml:"remote"`
}

const EnvPrefix = "WORKPLACE"

// DefaultJournalDSN keeps the journal in memory for the lifetime of the process.
const DefaultJournalDSN = "file:workplace-journal?mode=memory&cache=shared"

// SetDefaults registers defaults and env binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.base_path", "/v0")
	v.SetDefault("server.write_rate", 20.0)
	v.SetDefault("server.write_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("seed.file", "")
	v.SetDefault("journal.dsn", DefaultJournalDSN)
	v.SetDefault("operator.name", "Operator")
	v.SetDefault("remote.url", "http://127.0.0.1:8080/v0")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the optional config file into v and decodes the settings.
func Load(v *viper.Viper, file string) (Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate ensures the settings are usable.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if s.Server.BasePath != "" && !strings.HasPrefix(s.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	if s.Server.WriteRate < 0 {
		return fmt.Errorf("server.write_rate must not be negative")
	}
	if s.Server.WriteRate > 0 && s.Server.WriteBurst < 1 {
		return fmt.Errorf("server.write_burst must be at least 1 when write_rate is set")
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch s.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console")
	}
	if strings.TrimSpace(s.Journal.DSN) == "" {
		return fmt.Errorf("journal.dsn is required")
	}
	return nil
}
