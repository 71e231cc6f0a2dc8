package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
)

// Config file search order, lowest precedence first. Later files merge
// over earlier ones; environment variables override everything.
//
//	/etc/mentowatch/am.toml     system-wide
//	~/.mentowatch/am.toml       per-user
//	./am.toml                   project-local
//	MENTOWATCH_* env vars       runtime overrides
const (
	ConfigName = "am"
	ConfigType = "toml"
	EnvPrefix  = "MENTOWATCH"
)

// Load reads configuration from all config files plus the environment
// and returns the merged result. Missing files are not an error.
func Load() (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(ConfigType)

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	merged := 0
	for _, path := range configPaths() {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, errors.Wrapf(err, "merging config file %s", path)
		}
		logger.Debugw("merged config file", logger.FieldPath, path)
		merged++
	}
	if merged == 0 {
		logger.Debug("no config files found, using defaults")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// configPaths returns all candidate config file paths in precedence
// order, lowest first.
func configPaths() []string {
	paths := []string{
		filepath.Join("/etc", "mentowatch", ConfigName+"."+ConfigType),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mentowatch", ConfigName+"."+ConfigType))
	}
	paths = append(paths, ConfigName+"."+ConfigType)
	return paths
}

// UserConfigPath returns the per-user config file path; this is where
// `mentowatch am set` persists changes.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".mentowatch", ConfigName+"."+ConfigType), nil
}
