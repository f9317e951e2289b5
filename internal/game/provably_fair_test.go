package game

import (
	"fmt"
	"testing"
)

func TestHashAndMapToMultiplier(t *testing.T) {
	tests := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int
	}{
		{name: "Basic test", serverSeed: "test_server_seed_123", clientSeed: "test_client_seed_456", nonce: 1},
		{name: "Different nonce", serverSeed: "test_server_seed_123", clientSeed: "test_client_seed_456", nonce: 2},
		{name: "Empty client seed", serverSeed: "test_server_seed_123", clientSeed: "", nonce: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashAndMapToMultiplier(tt.serverSeed, tt.clientSeed, tt.nonce)
			if got < MIN_MULTIPLIER || got > MAX_MULTIPLIER {
				t.Errorf("HashAndMapToMultiplier() = %v, want within [%v, %v]", got, MIN_MULTIPLIER, MAX_MULTIPLIER)
			}
			if again := HashAndMapToMultiplier(tt.serverSeed, tt.clientSeed, tt.nonce); again != got {
				t.Errorf("not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}
	if len(seed1) != 64 {
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestHashCommitment(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashCommitment("abc"); got != want {
		t.Errorf("HashCommitment() = %v, want %v", got, want)
	}
}

func TestVerifyRound(t *testing.T) {
	serverSeed := "verification_test_seed"
	clientSeed := "verification_client_seed"
	nonce := 100
	actual := HashAndMapToMultiplier(serverSeed, clientSeed, nonce)

	tests := []struct {
		name    string
		claimed float64
		want    bool
	}{
		{name: "Valid verification", claimed: actual, want: true},
		{name: "Invalid multiplier", claimed: actual + 10.0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyRound(serverSeed, clientSeed, nonce, tt.claimed); got != tt.want {
				t.Errorf("VerifyRound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProvablyFairPolicy(t *testing.T) {
	p := NewProvablyFairPolicy()
	n := 0
	p.seeds = func() string {
		n++
		return fmt.Sprintf("seed-%d", n)
	}

	announced := p.BeginRound("round-1")
	fair := p.Current()

	if announced["commitment"] != HashCommitment("seed-1") {
		t.Errorf("commitment = %v", announced["commitment"])
	}
	if _, leaked := announced["server_seed"]; leaked {
		t.Error("server seed must not be announced before the crash")
	}
	if fair.CrashPoint != HashAndMapToMultiplier("seed-1", "seed-2", 1) {
		t.Errorf("CrashPoint = %v", fair.CrashPoint)
	}

	if fair.CrashPoint > 1.0 && p.Decide(fair.CrashPoint-0.01, 1) {
		t.Error("Decide() below crash point should be false")
	}
	if !p.Decide(fair.CrashPoint, 1) {
		t.Error("Decide() at crash point should be true")
	}

	revealed := p.EndRound()
	if revealed["server_seed"] != "seed-1" {
		t.Errorf("revealed server_seed = %v", revealed["server_seed"])
	}
	if !VerifyRound("seed-1", "seed-2", revealed["nonce"].(int), revealed["crash_point"].(float64)) {
		t.Error("revealed round does not verify")
	}

	p.BeginRound("round-2")
	if p.Current().Nonce != 2 {
		t.Errorf("Nonce = %v, want 2", p.Current().Nonce)
	}
}

func TestManager_ProvablyFairRound(t *testing.T) {
	policy := NewProvablyFairPolicy()
	h := newHarness(t, policy)

	betting, ok := h.events.last(EventRoundBetting)
	if !ok {
		t.Fatal("round_betting not emitted")
	}
	if betting.(map[string]interface{})["commitment"] == nil {
		t.Error("round_betting should carry the seed commitment")
	}

	fair := policy.Current()
	h.toPlaying()
	for i := 0; i < 2000 && h.m.Snapshot().Phase == PhasePlaying; i++ {
		h.ticks(1)
	}

	s := h.m.Snapshot()
	if s.Phase != PhaseCrashed {
		t.Fatalf("round did not crash, multiplier %v vs crash point %v", s.Multiplier, fair.CrashPoint)
	}
	if s.Multiplier < fair.CrashPoint {
		t.Errorf("crashed at %v before crash point %v", s.Multiplier, fair.CrashPoint)
	}

	crashed, _ := h.events.last(EventRoundCrashed)
	if crashed.(map[string]interface{})["server_seed"] != fair.ServerSeed {
		t.Error("round_crashed should reveal the server seed")
	}
}

func BenchmarkHashAndMapToMultiplier(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashAndMapToMultiplier("benchmark_server_seed", "benchmark_client_seed", i)
	}
}
