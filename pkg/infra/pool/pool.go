package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// ExtractionPool 文档解析池
	ExtractionPool Type = "extraction"
	// BackgroundPool 后台任务池（索引重建等）
	BackgroundPool Type = "background"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 池满时 Submit 直接返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(interface{})
}

// ExtractionPoolConfig 返回文档解析池配置。
func ExtractionPoolConfig(workers int) *Config {
	return &Config{
		Capacity:       workers,
		ExpiryDuration: 10 * time.Second,
	}
}

// BackgroundPoolConfig 返回后台任务池配置。只允许一个任务运行，多余的直接拒绝。
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:       1,
		ExpiryDuration: 60 * time.Second,
		Nonblocking:    true,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	config   *Config
	stats    poolStatsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type poolStatsCounter struct {
	Submitted atomic.Int64
	Completed atomic.Int64
	Rejected  atomic.Int64
	Panics    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
	Running   int   `json:"running"`
	Capacity  int   `json:"capacity"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil || config.Capacity <= 0 {
		return nil, ErrInvalidPoolConfig
	}

	p := &Pool{name: name, typ: typ, config: config}

	pool, err := ants.NewPool(config.Capacity, buildAntsOptions(name, config)...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = pool

	logger.Debugw("worker pool created", "name", name, "type", string(typ), "capacity", config.Capacity)
	return p, nil
}

func buildAntsOptions(name string, config *Config) []ants.Option {
	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}

	handler := config.PanicHandler
	if handler == nil {
		handler = func(p interface{}) {
			logger.Errorw("worker panic recovered", "pool", name, "panic", p)
		}
	}
	return append(opts, ants.WithPanicHandler(handler))
}

// Name 返回池名称
func (p *Pool) Name() string { return p.name }

// Cap 返回池容量
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int { return p.pool.Running() }

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		p.stats.Submitted.Add(1)
		defer func() {
			if r := recover(); r != nil {
				p.stats.Panics.Add(1)
				panic(r)
			}
			p.stats.Completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.Rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// SubmitWithContext 提交带上下文的任务，任务开始前上下文已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// ForEach 对 [0, n) 的每个下标在池中执行 fn，并等待全部完成。
// 提交失败的下标在当前 goroutine 中同步执行。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}

		i := i
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			fn(i)
		})
		if err != nil {
			wg.Done()
			logger.Debugw("pool submit failed, running inline", "pool", p.name, "error", err.Error())
			fn(i)
		}
	}
	wg.Wait()
	return ctx.Err()
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Debugw("worker pool released", "name", p.name)
}

// ReleaseTimeout 等待任务完成直到超时后关闭池。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.Submitted.Load(),
		Completed: p.stats.Completed.Load(),
		Rejected:  p.stats.Rejected.Load(),
		Panics:    p.stats.Panics.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}
