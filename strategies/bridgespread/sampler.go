package bridgespread

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Sampler supplies the bridge capacity and confidence for a route key. A
// production deployment backs it with real bridge liquidity figures.
type Sampler interface {
	Capacity(key string) float64
	Confidence(key string) float64
}

// HashSampler derives capacity and confidence from a hash of the seed and
// route key, so the same inputs always draw the same figures
type HashSampler struct {
	Seed          uint64
	MinCapacity   float64
	MaxCapacity   float64
	MinConfidence float64
	MaxConfidence float64
}

// NewHashSampler creates a sampler over the given capacity range with the
// 85-95 confidence band
func NewHashSampler(seed uint64, minCapacity, maxCapacity float64) *HashSampler {
	return &HashSampler{
		Seed:          seed,
		MinCapacity:   minCapacity,
		MaxCapacity:   maxCapacity,
		MinConfidence: 85,
		MaxConfidence: 95,
	}
}

func (s *HashSampler) Capacity(key string) float64 {
	return lerp(s.MinCapacity, s.MaxCapacity, s.unit("capacity", key))
}

func (s *HashSampler) Confidence(key string) float64 {
	return lerp(s.MinConfidence, s.MaxConfidence, s.unit("confidence", key))
}

// unit maps (seed, salt, key) onto [0, 1)
func (s *HashSampler) unit(salt, key string) float64 {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], s.Seed)

	h := xxhash.New()
	_, _ = h.Write(seed[:])
	_, _ = h.WriteString(salt)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(key)

	// top 53 bits fill a float64 mantissa exactly
	return float64(h.Sum64()>>11) / (1 << 53)
}

func lerp(lo, hi, u float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return math.Min(lo+(hi-lo)*u, hi)
}

// FixedSampler returns the same figures for every route
type FixedSampler struct {
	Cap  float64
	Conf float64
}

func (s FixedSampler) Capacity(string) float64   { return s.Cap }
func (s FixedSampler) Confidence(string) float64 { return s.Conf }
