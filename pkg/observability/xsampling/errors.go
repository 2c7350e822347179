package xsampling

import "errors"

var (
	// ErrInvalidRate 采样率不在 [0, 1] 内或为 NaN。
	ErrInvalidRate = errors.New("xsampling: rate must be in [0.0, 1.0]")

	ErrNilKeyFunc = errors.New("xsampling: keyFunc must not be nil")
)
