package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

const (
	AUTO_CRASH_FLOOR       = 1.5
	AUTO_CRASH_PROBABILITY = 0.005
)

// CrashPolicy decides, once per tick and after the multiplier update, whether
// the round ends. Implementations must not read or mutate game state; they
// only see the values passed in.
type CrashPolicy interface {
	Decide(multiplier float64, tick int) bool
}

// RoundObserver is implemented by policies that hold per-round state. The
// clock calls BeginRound when a new round opens for betting and EndRound when
// it crashes; the returned maps are attached to the matching notifications.
type RoundObserver interface {
	BeginRound(roundID string) map[string]interface{}
	EndRound() map[string]interface{}
}

// PolicyFunc adapts a plain function to CrashPolicy.
type PolicyFunc func(multiplier float64, tick int) bool

func (f PolicyFunc) Decide(multiplier float64, tick int) bool {
	return f(multiplier, tick)
}

// RandomPolicy crashes with an independent per-tick probability once the
// multiplier is above Floor. Not safe for concurrent use; the clock calls it
// from its critical section only.
type RandomPolicy struct {
	Floor       float64
	Probability float64
	rng         *rand.Rand
}

// NewRandomPolicy returns the default policy. A nil rng is replaced by one
// seeded from crypto/rand.
func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		var seed [16]byte
		crand.Read(seed[:])
		rng = rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		))
	}
	return &RandomPolicy{
		Floor:       AUTO_CRASH_FLOOR,
		Probability: AUTO_CRASH_PROBABILITY,
		rng:         rng,
	}
}

func (p *RandomPolicy) Decide(multiplier float64, tick int) bool {
	if multiplier <= p.Floor {
		return false
	}
	return p.rng.Float64() < p.Probability
}

// CrashAtTick crashes exactly when the tick index reaches n.
func CrashAtTick(n int) CrashPolicy {
	return PolicyFunc(func(_ float64, tick int) bool {
		return tick >= n
	})
}

// CrashAtMultiplier crashes on the first tick whose multiplier reaches target.
func CrashAtMultiplier(target float64) CrashPolicy {
	return PolicyFunc(func(multiplier float64, _ int) bool {
		return multiplier >= target
	})
}

// NeverCrash leaves termination to ForceCrash.
func NeverCrash() CrashPolicy {
	return PolicyFunc(func(float64, int) bool { return false })
}

// CappedPolicy bounds round duration: it defers to Inner and forces a crash
// once tick reaches MaxTicks. MaxTicks <= 0 disables the cap.
type CappedPolicy struct {
	Inner    CrashPolicy
	MaxTicks int
}

func (c CappedPolicy) Decide(multiplier float64, tick int) bool {
	if c.MaxTicks > 0 && tick >= c.MaxTicks {
		return true
	}
	return c.Inner.Decide(multiplier, tick)
}

func (c CappedPolicy) BeginRound(roundID string) map[string]interface{} {
	if o, ok := c.Inner.(RoundObserver); ok {
		return o.BeginRound(roundID)
	}
	return nil
}

func (c CappedPolicy) EndRound() map[string]interface{} {
	if o, ok := c.Inner.(RoundObserver); ok {
		return o.EndRound()
	}
	return nil
}
