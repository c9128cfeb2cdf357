package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ResponseCode business response code carried in the envelope
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0
	CodeFailed  ResponseCode = 1

	// Request errors
	CodeInvalidParam  ResponseCode = 1001
	CodeUnauthorized  ResponseCode = 1002
	CodeForbidden     ResponseCode = 1003
	CodeNotFound      ResponseCode = 1004
	CodeRateLimit     ResponseCode = 1005
	CodePrecondition  ResponseCode = 1006
	CodeConflict      ResponseCode = 1007
	CodeRequestExpire ResponseCode = 1008

	// Platform errors
	CodePlatformAuth     ResponseCode = 2001
	CodePlatformPublish  ResponseCode = 2002
	CodePlatformShare    ResponseCode = 2003
	CodePlatformDisabled ResponseCode = 2004

	// System errors
	CodeInternalError ResponseCode = 5000
	CodeDatabaseError ResponseCode = 5001
	CodeRedisError    ResponseCode = 5002
)

var codeStatus = map[ResponseCode]int{
	CodeSuccess:          http.StatusOK,
	CodeFailed:           http.StatusOK,
	CodeInvalidParam:     http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeRateLimit:        http.StatusTooManyRequests,
	CodePrecondition:     http.StatusPreconditionFailed,
	CodeConflict:         http.StatusConflict,
	CodeRequestExpire:    http.StatusGatewayTimeout,
	CodePlatformAuth:     http.StatusUnauthorized,
	CodePlatformPublish:  http.StatusBadGateway,
	CodePlatformShare:    http.StatusBadGateway,
	CodePlatformDisabled: http.StatusServiceUnavailable,
	CodeInternalError:    http.StatusInternalServerError,
	CodeDatabaseError:    http.StatusInternalServerError,
	CodeRedisError:       http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status paired with the code
func (c ResponseCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// AcceptedResponse returns 202 for work handed off to a background consumer
func AcceptedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:      CodeSuccess,
		Message:   "accepted",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes an error envelope with the HTTP status derived from code
func Error(c *gin.Context, code ResponseCode, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData writes an error envelope carrying extra detail
func ErrorWithData(c *gin.Context, code ResponseCode, message string, data interface{}) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
