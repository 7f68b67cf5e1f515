package errors

import "net/http"

// OK represents success.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	MessageEN: "Success",
	MessageZH: "成功",
})

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	// ErrNotFound indicates a missing resource.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 0),
		HTTP:      http.StatusNotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrRouteNotFound indicates an unknown route.
	ErrRouteNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		MessageEN: "Route not found",
		MessageZH: "路由不存在",
	})

	// ErrInternal indicates an unexpected failure.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrServiceUnavailable indicates the service is not ready.
	ErrServiceUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "Service unavailable",
		MessageZH: "服务不可用",
	})

	// ErrConfigInvalid indicates invalid configuration.
	ErrConfigInvalid = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryConfig, 0),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Invalid configuration",
		MessageZH: "配置无效",
	})
)
