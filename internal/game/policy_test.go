package game

import (
	"math/rand/v2"
	"testing"
)

func TestRandomPolicy_Floor(t *testing.T) {
	p := NewRandomPolicy(rand.New(rand.NewPCG(1, 2)))
	p.Probability = 1

	for _, m := range []float64{1.0, 1.02, 1.49, 1.5} {
		if p.Decide(m, 1) {
			t.Errorf("Decide(%v) = true, want no crash at or below the floor", m)
		}
	}
	if !p.Decide(1.51, 1) {
		t.Error("Decide(1.51) with probability 1 should crash")
	}
}

func TestRandomPolicy_Rate(t *testing.T) {
	p := NewRandomPolicy(rand.New(rand.NewPCG(42, 42)))

	const trials = 200000
	crashes := 0
	for i := 0; i < trials; i++ {
		if p.Decide(2.0, i) {
			crashes++
		}
	}

	rate := float64(crashes) / trials
	if rate < 0.004 || rate > 0.006 {
		t.Errorf("crash rate = %.4f, want about %.3f", rate, AUTO_CRASH_PROBABILITY)
	}
}

func TestRandomPolicy_Deterministic(t *testing.T) {
	a := NewRandomPolicy(rand.New(rand.NewPCG(7, 9)))
	b := NewRandomPolicy(rand.New(rand.NewPCG(7, 9)))
	for i := 0; i < 5000; i++ {
		if a.Decide(3, i) != b.Decide(3, i) {
			t.Fatalf("policies with equal seeds diverged at tick %d", i)
		}
	}
}

func TestRandomPolicy_DefaultSource(t *testing.T) {
	p := NewRandomPolicy(nil)
	if p.Floor != AUTO_CRASH_FLOOR || p.Probability != AUTO_CRASH_PROBABILITY {
		t.Errorf("defaults = %v/%v", p.Floor, p.Probability)
	}
	_ = p.Decide(2, 1)
}

func TestScriptedPolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     CrashPolicy
		multiplier float64
		tick       int
		want       bool
	}{
		{name: "at tick before", policy: CrashAtTick(3), multiplier: 9, tick: 2, want: false},
		{name: "at tick reached", policy: CrashAtTick(3), multiplier: 1, tick: 3, want: true},
		{name: "at multiplier below", policy: CrashAtMultiplier(2), multiplier: 1.99, tick: 50, want: false},
		{name: "at multiplier reached", policy: CrashAtMultiplier(2), multiplier: 2.01, tick: 1, want: true},
		{name: "never", policy: NeverCrash(), multiplier: 1e6, tick: 1e6, want: false},
		{name: "cap not reached", policy: CappedPolicy{Inner: NeverCrash(), MaxTicks: 10}, multiplier: 5, tick: 9, want: false},
		{name: "cap reached", policy: CappedPolicy{Inner: NeverCrash(), MaxTicks: 10}, multiplier: 5, tick: 10, want: true},
		{name: "cap disabled", policy: CappedPolicy{Inner: NeverCrash()}, multiplier: 5, tick: 1e6, want: false},
		{name: "cap defers to inner", policy: CappedPolicy{Inner: CrashAtTick(2), MaxTicks: 10}, multiplier: 1, tick: 2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Decide(tt.multiplier, tt.tick); got != tt.want {
				t.Errorf("Decide(%v, %d) = %v, want %v", tt.multiplier, tt.tick, got, tt.want)
			}
		})
	}
}

func TestCappedPolicy_ForwardsRoundObserver(t *testing.T) {
	inner := NewProvablyFairPolicy()
	capped := CappedPolicy{Inner: inner, MaxTicks: 100}

	var _ RoundObserver = capped

	announced := capped.BeginRound("r1")
	if announced["commitment"] != inner.Current().Commitment {
		t.Error("BeginRound should reach the wrapped policy")
	}
	if capped.EndRound()["server_seed"] != inner.Current().ServerSeed {
		t.Error("EndRound should reach the wrapped policy")
	}

	plain := CappedPolicy{Inner: NeverCrash()}
	if plain.BeginRound("r1") != nil || plain.EndRound() != nil {
		t.Error("non-observing inner policy should yield nil maps")
	}
}
