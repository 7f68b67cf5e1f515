// Package response provides the unified API response envelope.
package response

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/infra/middleware"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:      errors.OK.Code,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:      e.Code,
		Message:   e.MessageEN,
		Timestamp: time.Now().UnixMilli(),
	}
}

// OK writes a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	resp := Success(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(errors.OK.HTTPStatus(), resp)
}

// Fail writes the error response using the HTTP status of its Errno.
func Fail(c *gin.Context, err error) {
	FailWithData(c, err, nil)
}

// FailWithData writes an error envelope that still carries a payload.
func FailWithData(c *gin.Context, err error, data interface{}) {
	e := errors.FromError(err)
	if e == nil {
		e = errors.ErrInternal
	}
	resp := Err(e)
	resp.Data = data
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(e.HTTPStatus(), resp)
}
