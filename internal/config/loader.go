package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = ".cbind"
	configType = "yaml"
	envPrefix  = "CBIND"
)

// LoadOption configures Load.
type LoadOption func(*viper.Viper) error

// WithFlags binds the flags of fs that are named after a configuration key,
// with dashes for underscores (--output-dir sets output_dir). A flag only
// takes effect when it was set on the command line.
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(v *viper.Viper) error {
		for _, key := range Keys() {
			f := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
		return nil
	}
}

// Load reads configuration from defaults, a config file, CBIND_
// environment variables and bound flags, in increasing precedence. An
// explicit path must exist; otherwise .cbind.yaml is looked up in the
// working directory and $HOME, and a missing file is not an error.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	applyDefaults(v)
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Keys lists the configuration keys.
func Keys() []string {
	return []string{
		"module", "package", "compiler", "error_policy", "reference_policy",
		"allocation", "debug", "headers", "libraries", "include_paths", "rules",
		"output_dir", "max_steps", "parse_workers",
	}
}

func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("module", "")
	v.SetDefault("package", d.Package)
	v.SetDefault("compiler", d.Compiler)
	v.SetDefault("error_policy", d.ErrorPolicy)
	v.SetDefault("reference_policy", d.ReferencePolicy)
	v.SetDefault("allocation", d.Allocation)
	v.SetDefault("debug", false)
	v.SetDefault("headers", []string{})
	v.SetDefault("libraries", []string{})
	v.SetDefault("include_paths", []string{})
	v.SetDefault("rules", []string{})
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("max_steps", d.MaxSteps)
	v.SetDefault("parse_workers", 0)
}
