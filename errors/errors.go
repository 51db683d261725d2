package errors

import (
	"fmt"
)

// ErrorCode 定义错误码类型
type ErrorCode int

const (
	// 错误码定义
	ErrCodeUnknown ErrorCode = iota
	ErrCodeConfigInvalid
	ErrCodeConsulNotAvailable
	ErrCodeTransport
	ErrCodeDecode
	ErrCodeEmptyPrefix
	ErrCodeEmptyKey
	ErrCodeUnknownContext
	ErrCodeAlreadyStarted
	ErrCodeStopped
	ErrCodeValidation
)

// ConsulError 统一的错误类型
type ConsulError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ConsulError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回被包装的底层错误
func (e *ConsulError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is(err, ErrEmptyKey) 这类判断
func (e *ConsulError) Is(target error) bool {
	t, ok := target.(*ConsulError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// 预定义错误
var (
	ErrConsulNotAvailable = &ConsulError{Code: ErrCodeConsulNotAvailable, Message: "consul service not available"}
	ErrEmptyPrefix        = &ConsulError{Code: ErrCodeEmptyPrefix, Message: "empty kv prefix"}
	ErrEmptyKey           = &ConsulError{Code: ErrCodeEmptyKey, Message: "empty key"}
	ErrUnknownContext     = &ConsulError{Code: ErrCodeUnknownContext, Message: "unknown watch context"}
	ErrAlreadyStarted     = &ConsulError{Code: ErrCodeAlreadyStarted, Message: "already started"}
	ErrStopped            = &ConsulError{Code: ErrCodeStopped, Message: "stopped"}
)

// NewError 创建新的错误
func NewError(code ErrorCode, message string, err error) *ConsulError {
	return &ConsulError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsConsulError 判断是否为 ConsulError 类型
func IsConsulError(err error) bool {
	_, ok := err.(*ConsulError)
	return ok
}

// GetErrorCode 获取错误码，会沿着包装链查找
func GetErrorCode(err error) ErrorCode {
	for err != nil {
		if consulErr, ok := err.(*ConsulError); ok {
			return consulErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeUnknown
}
