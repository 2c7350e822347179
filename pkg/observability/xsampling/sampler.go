package xsampling

import (
	"context"
	"math"
	"math/rand/v2"
)

// Sampler 决定一个事件是否被采样。
type Sampler interface {
	ShouldSample(ctx context.Context) bool
}

type constSampler bool

func (s constSampler) ShouldSample(context.Context) bool { return bool(s) }

// Always 全部采样。
func Always() Sampler { return constSampler(true) }

// Never 全部跳过。
func Never() Sampler { return constSampler(false) }

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return ErrInvalidRate
	}
	return nil
}

// RateSampler 按固定比率随机采样。
type RateSampler struct {
	rate float64
}

func NewRateSampler(rate float64) (*RateSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &RateSampler{rate: rate}, nil
}

func (s *RateSampler) ShouldSample(context.Context) bool {
	switch {
	case s.rate <= 0:
		return false
	case s.rate >= 1:
		return true
	}
	return rand.Float64() < s.rate
}

func (s *RateSampler) Rate() float64 { return s.rate }
