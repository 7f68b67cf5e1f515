// Package resilience 为推理后端调用提供熔断保护。
// 只做熔断不做重试，每次请求仍只尝试一次。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitOpen 熔断器打开时返回。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config 熔断器配置。
type Config struct {
	// MaxFailures 连续失败多少次后打开，<= 0 表示禁用熔断。
	MaxFailures int
	// Cooldown 打开后等待多久进入半开状态。
	Cooldown time.Duration
}

// DefaultConfig 返回默认熔断器配置。
func DefaultConfig() *Config {
	return &Config{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// State 熔断器状态。
type State int

const (
	// StateClosed 正常放行。
	StateClosed State = iota
	// StateOpen 拒绝所有调用。
	StateOpen
	// StateHalfOpen 放行一次探测调用。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 熔断器。半开状态同一时间只放行一个探测请求。
type CircuitBreaker struct {
	name   string
	config *Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(name string, config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
	}
}

// Execute 在熔断器保护下执行 fn。调用方取消的请求不计入失败。
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if cb.config.MaxFailures <= 0 {
		return fn()
	}
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	cb.record(err, ctx.Err() == context.Canceled)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		logger.Infow("circuit breaker half-open, probing backend", "breaker", cb.name)
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error, cancelled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if cancelled {
		return
	}

	if err == nil {
		if cb.state != StateClosed {
			logger.Infow("circuit breaker closed", "breaker", cb.name)
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
		if cb.state != StateOpen {
			logger.Warnw("circuit breaker opened",
				"breaker", cb.name,
				"failures", cb.failures,
				"cooldown", cb.config.Cooldown.String(),
			)
		}
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 关闭熔断器并清空计数。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probing = false
}
