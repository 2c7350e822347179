package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen 熔断器拒绝了请求（打开或半开且探测名额已满）。
var ErrOpen = errors.New("xbreaker: circuit open")

// OpenError 请求被熔断器拒绝。Unwrap 返回 gobreaker 的原始错误。
type OpenError struct {
	Name  string
	State State
	Cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("xbreaker: %s: circuit %s: %v", e.Name, e.State, e.Cause)
}

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

func (e *OpenError) Unwrap() error { return e.Cause }

// Retryable 熔断拒绝不值得立即重试。
func (e *OpenError) Retryable() bool { return false }

// IsOpen 判断 err 是否为熔断拒绝。
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

func wrapRejection(err error, name string, state State) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &OpenError{Name: name, State: state, Cause: err}
	}
	return err
}
