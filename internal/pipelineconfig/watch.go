package pipelineconfig

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/donsko1/DNS-case/pkg/logger"
)

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file is written. It runs until ctx is cancelled.
//
// A reload that fails validation is logged, passed to onError when set, and
// the previous config stays active.
func Watch(ctx context.Context, path string, log *logger.Logger, onChange func(*Config), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// 디렉터리 단위로 감시: 에디터의 rename 저장도 잡기 위함
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	log.WithField("path", target).Info("Watching pipeline config")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(target)
			if err != nil {
				log.WithError(err).WithField("path", target).Error("Pipeline config reload failed, keeping previous config")
				if onError != nil {
					onError(err)
				}
				continue
			}

			hash, _ := Hash(cfg)
			log.WithFields(map[string]interface{}{
				"path":        target,
				"config_hash": hash,
			}).Info("Pipeline config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Pipeline config watcher error")
		}
	}
}
