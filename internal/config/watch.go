package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"algotrade/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变更，Close 后停止回调。
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// Watch 监听主配置及其 include 文件的变更，重新加载整份配置后回调 fn。
// 加载或校验失败时保留旧配置，只记录日志。
// 与 viper 一样监听所在目录，编辑器以改名方式保存时也能收到事件。
func Watch(path string, fn func(*Config)) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watch requires path")
	}
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher failed: %w", err)
	}
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		watched[file] = true
		dir := filepath.Dir(file)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s failed: %w", dir, err)
		}
		dirs[dir] = true
	}
	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.loop(path, watched, fn)
	return w, nil
}

func (w *Watcher) loop(path string, watched map[string]bool, fn func(*Config)) {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !watched[filepath.Clean(evt.Name)] {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Errorf("config reload failed (%s): %v", evt.Name, err)
				continue
			}
			logger.Infof("config reloaded after change to %s", evt.Name)
			if fn != nil {
				fn(cfg)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

// Close 停止监听并等待回调协程退出。可重复调用。
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
