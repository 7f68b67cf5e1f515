// Package pool wraps ants worker pools used for document extraction and background rebuilds.
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool is overloaded")

	// ErrInvalidPoolConfig 无效的池配置
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)
