// Package config loads a ledger definition from YAML and CHAINLEDGER_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/chainledger/internal/engine"
)

// EnvPrefix prefixes every environment override, e.g.
// CHAINLEDGER_STORAGE_PATH for storage.path.
const EnvPrefix = "CHAINLEDGER"

// DefaultName is the config file base name searched for when no explicit
// path is given.
const DefaultName = "chainledger"

// Server configures the HTTP API.
type Server struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// File is the complete on-disk configuration.
type File struct {
	engine.LedgerConfig `mapstructure:",squash"`
	Server              Server `json:"server" yaml:"server" mapstructure:"server"`

	// Source is the config file that was read, empty when none was found.
	Source string `json:"-" yaml:"-" mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("id", "")
	v.SetDefault("storage.kind", string(engine.StorageNone))
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("acl.kind", string(engine.ACLNone))
	v.SetDefault("acl.redis_addr", "")
	v.SetDefault("acl.redis_prefix", "")
	v.SetDefault("acl.redis_db", 0)
	v.SetDefault("options.strict_validation", false)
	v.SetDefault("options.max_entries", 0)
	v.SetDefault("options.enable_metrics", false)
	v.SetDefault("server.addr", ":8080")
}

// New returns a viper instance with defaults and env overrides wired.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path, or searches ./configs and . for chainledger.yaml when
// path is empty. A missing file is only an error when path was given.
func Load(path string) (File, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultName)
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return File{}, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// LoadReader reads YAML from s. Used by tests and embedded configs.
func LoadReader(s string) (File, error) {
	v := New()
	if err := v.ReadConfig(strings.NewReader(s)); err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("decode config: %w", err)
	}
	f.Source = v.ConfigFileUsed()
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the ledger section and the server address.
func (f File) Validate() error {
	if err := f.LedgerConfig.Validate(); err != nil {
		return err
	}
	if f.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	return nil
}
