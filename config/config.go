// Package config loads pickle settings from a YAML file and PICKLE_
// environment variables.
package config

import (
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wippyai/pickle-host/errors"
)

// EnvPrefix prefixes every environment override, e.g. PICKLE_LOG_LEVEL.
const EnvPrefix = "PICKLE"

// Config is the resolved configuration.
type Config struct {
	Log     Log     `mapstructure:"log"`
	Heap    Heap    `mapstructure:"heap"`
	Modules Modules `mapstructure:"modules"`
	FS      FS      `mapstructure:"fs"`
	HTTPC   HTTPC   `mapstructure:"httpc"`
	SNTP    SNTP    `mapstructure:"sntp"`
	Wasm    Wasm    `mapstructure:"wasm"`
	Shell   Shell   `mapstructure:"shell"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Heap controls the instrumented allocator.
type Heap struct {
	// Report prints allocator statistics at exit.
	Report bool `mapstructure:"report"`
	// FailAfter makes allocations fail after n successes; 0 disables.
	FailAfter int `mapstructure:"fail_after"`
}

type Modules struct {
	Disabled []string `mapstructure:"disabled"`
}

// FS roots script file access; empty means the process working directory.
type FS struct {
	Root string `mapstructure:"root"`
}

type HTTPC struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Debug   bool          `mapstructure:"debug"`
}

type SNTP struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Wasm struct {
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

type Shell struct {
	Prompt string `mapstructure:"prompt"`
}

// Disabled reports whether the named module is switched off.
func (c *Config) Disabled(name string) bool {
	for _, d := range c.Modules.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("heap.report", false)
	v.SetDefault("heap.fail_after", 0)
	v.SetDefault("modules.disabled", []string{})
	v.SetDefault("fs.root", "")
	v.SetDefault("httpc.timeout", 30*time.Second)
	v.SetDefault("httpc.debug", false)
	v.SetDefault("sntp.port", 123)
	v.SetDefault("sntp.timeout", 5*time.Second)
	v.SetDefault("wasm.memory_limit_pages", 0)
	v.SetDefault("shell.prompt", "psh>")
}

// New returns a viper instance with defaults and environment binding.
// Flags may be bound to it before Load reads it.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or pickle.yaml from the working directory or $HOME when
// path is empty, and resolves v into a Config. A missing default file is
// not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pickle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArgument, err, "cannot read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArgument, err, "cannot decode config")
	}
	if cfg.SNTP.Port < 1 || cfg.SNTP.Port > 65535 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidArgument).
			Token("sntp.port").Detail("port %d out of range", cfg.SNTP.Port).Build()
	}
	if cfg.Heap.FailAfter < 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidArgument).
			Token("heap.fail_after").Detail("must not be negative").Build()
	}
	return &cfg, nil
}
