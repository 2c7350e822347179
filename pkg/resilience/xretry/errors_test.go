package xretry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiedErrors(t *testing.T) {
	inner := errors.New("inner")

	perm := NewPermanentError(inner)
	assert.Equal(t, "inner", perm.Error())
	assert.ErrorIs(t, perm, inner)
	assert.False(t, perm.Retryable())
	assert.Equal(t, "permanent error", NewPermanentError(nil).Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"普通错误", errors.New("x"), true},
		{"永久性错误", NewPermanentError(errors.New("x")), false},
		{"包装后的永久性错误", fmt.Errorf("wrap: %w", NewPermanentError(errors.New("x"))), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
			assert.Equal(t, tt.err != nil && !tt.want, IsPermanent(tt.err))
		})
	}
}

func TestUnrecoverable(t *testing.T) {
	err := Unrecoverable(errors.New("stop"))
	assert.False(t, IsRecoverable(err))
	assert.True(t, IsRecoverable(errors.New("go on")))
}
