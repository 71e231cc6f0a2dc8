package am

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
)

const backupCount = 3

var (
	ownWriteMu sync.Mutex
	ownWriteAt time.Time
)

// MarkOwnWrite records that the config file is being written by this
// process so the file watcher can skip the resulting fsnotify event.
func MarkOwnWrite() {
	ownWriteMu.Lock()
	ownWriteAt = time.Now()
	ownWriteMu.Unlock()
}

// isOwnWrite reports whether a write event within the window was ours.
func isOwnWrite(window time.Duration) bool {
	ownWriteMu.Lock()
	defer ownWriteMu.Unlock()
	return time.Since(ownWriteAt) < window
}

// SetValue writes a single key to the per-user config file, preserving
// all other settings in it. The previous file is kept as a rotating
// backup (am.toml.back1 newest, back3 oldest).
func SetValue(key string, value any) error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}

	settings := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return errors.Wrapf(err, "parsing %s", path)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading %s", path)
	}

	setNested(settings, key, value)

	// Round-trip through viper so the change is validated the same way
	// a full load would validate it.
	v := viper.New()
	v.SetConfigType(ConfigType)
	SetDefaults(v)
	if err := v.MergeConfigMap(settings); err != nil {
		return errors.Wrap(err, "merging updated settings")
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "unmarshaling updated settings")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(err, "validating %s=%v", key, value)
	}

	return writeConfigFile(path, settings)
}

func writeConfigFile(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating config directory for %s", path)
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	rotateBackups(path)
	MarkOwnWrite()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "replacing %s", path)
	}

	logger.Infow("config written", logger.FieldPath, path)
	return nil
}

// rotateBackups shifts path.back1 -> .back2 -> .back3 and copies the
// current file to path.back1. Best-effort: a failed backup never blocks
// the write itself.
func rotateBackups(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	for i := backupCount - 1; i >= 1; i-- {
		src := backupPath(path, i)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, backupPath(path, i+1))
		}
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(backupPath(path, 1), data, 0o644)
	}
}

func backupPath(path string, n int) string {
	return path + ".back" + string(rune('0'+n))
}

// setNested sets a dotted key like "chain.rpc_url" in a nested map,
// creating intermediate tables as needed.
func setNested(m map[string]any, key string, value any) {
	parts := splitKey(key)
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func splitKey(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	return append(parts, key[start:])
}
