// Package watcher 监听文档目录变化，合并连续事件后触发索引刷新。
package watcher

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/pkg/infra/pool"
)

// RefreshFunc 在目录变化稳定后调用。
type RefreshFunc func(ctx context.Context) error

// Config 监听配置。
type Config struct {
	// Dir 监听的文档目录（含已有子目录）。
	Dir string
	// Debounce 最后一个事件之后等待的时间。
	Debounce time.Duration
	// Filter 判断文件事件是否相关，为 nil 时所有文件都相关。目录事件总是相关。
	Filter func(path string) bool
}

// Watcher 文档目录监听器。刷新任务在容量为 1 的后台池中执行，
// 刷新进行中到达的变化会在其完成后再次触发。
type Watcher struct {
	config  Config
	refresh RefreshFunc
	fsw     *fsnotify.Watcher
	pool    *pool.Pool

	triggered chan struct{}
}

// New 创建监听器并注册目录树中的所有目录。
func New(config Config, refresh RefreshFunc) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = 2 * time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	p, err := pool.NewPool("corpus-refresh", pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		config:    config,
		refresh:   refresh,
		fsw:       fsw,
		pool:      p,
		triggered: make(chan struct{}, 1),
	}
	if err := w.addTree(config.Dir); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			logger.Debugw("watching directory", "path", path)
		}
		return nil
	})
}

// Triggered 每次刷新任务提交后发出信号，供测试观察。
func (w *Watcher) Triggered() <-chan struct{} {
	return w.triggered
}

// Run 处理事件直到 ctx 取消。
func (w *Watcher) Run(ctx context.Context) error {
	logger.Infow("corpus watcher started", "dir", w.config.Dir, "debounce", w.config.Debounce.String())

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infow("corpus watcher stopped", "dir", w.config.Dir)
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debugw("corpus change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.config.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("corpus watcher error", "error", err.Error())

		case <-timer.C:
			if !w.submit(ctx) {
				// 刷新仍在进行，稍后重试。
				timer.Reset(w.config.Debounce)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logger.Warnw("failed to watch new directory", "path", event.Name, "error", err.Error())
			}
			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	return w.config.Filter == nil || w.config.Filter(event.Name)
}

func (w *Watcher) submit(ctx context.Context) bool {
	err := w.pool.SubmitWithContext(ctx, func() {
		if err := w.refresh(ctx); err != nil {
			logger.Errorw("corpus refresh failed, previous index keeps serving", "error", err.Error())
			return
		}
		logger.Infow("corpus refreshed after change", "dir", w.config.Dir)
	})
	if stderrors.Is(err, pool.ErrPoolOverload) {
		logger.Debugw("refresh already running, deferring")
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		logger.Warnw("failed to schedule corpus refresh", "error", err.Error())
		return true
	}

	select {
	case w.triggered <- struct{}{}:
	default:
	}
	return true
}

// Close 停止监听并等待进行中的刷新结束。
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if rerr := w.pool.ReleaseTimeout(30 * time.Second); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
