package am

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
)

const (
	debounceWindow = 500 * time.Millisecond
	ownWriteWindow = 2 * time.Second
)

// Watcher reloads configuration when any config file on disk changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onReload func(*Config)
}

// NewWatcher watches the directories containing each candidate config
// file. onReload is called with the freshly merged config after every
// successful reload; invalid edits are logged and skipped.
func NewWatcher(onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	seen := map[string]bool{}
	for _, path := range configPaths() {
		dir := filepath.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fw.Add(dir); err != nil {
			// Directory may not exist yet; that is fine.
			logger.Debugw("not watching config directory", logger.FieldPath, dir, logger.FieldError, err)
		}
	}

	return &Watcher{watcher: fw, onReload: onReload}, nil
}

// Run processes file events until ctx is cancelled. Rapid event bursts
// (editors writing through temp files) are debounced into one reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if isOwnWrite(ownWriteWindow) {
				logger.Debugw("skipping own config write", logger.FieldPath, event.Name)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("config watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == ConfigName+"."+ConfigType
}

func (w *Watcher) reload() {
	cfg, _, err := Load()
	if err != nil {
		logger.Warnw("config reload failed, keeping previous config", logger.FieldError, err)
		return
	}
	logger.Info("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
