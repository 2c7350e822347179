package xsampling

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// KeyFunc 从 ctx 取采样 key。
type KeyFunc func(ctx context.Context) string

// KeyBasedSampler 按 key 的 xxhash 一致采样：同一 key 在任何进程里得到相同结论。
// key 为空时退化为随机采样。
type KeyBasedSampler struct {
	rate    float64
	keyFunc KeyFunc
}

func NewKeyBasedSampler(rate float64, keyFunc KeyFunc) (*KeyBasedSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	if keyFunc == nil {
		return nil, ErrNilKeyFunc
	}
	return &KeyBasedSampler{rate: rate, keyFunc: keyFunc}, nil
}

func (s *KeyBasedSampler) ShouldSample(ctx context.Context) bool {
	switch {
	case s.rate <= 0:
		return false
	case s.rate >= 1:
		return true
	}
	key := s.keyFunc(ctx)
	if key == "" {
		return rand.Float64() < s.rate
	}
	return s.sampleKey(key)
}

func (s *KeyBasedSampler) sampleKey(key string) bool {
	// rate < 1，归一化结果等于 1.0 时不会通过
	return float64(xxhash.Sum64String(key))/float64(math.MaxUint64) < s.rate
}

func (s *KeyBasedSampler) Rate() float64 { return s.rate }
