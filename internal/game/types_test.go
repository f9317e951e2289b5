package game

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRoundState_JSON(t *testing.T) {
	s := RoundState{RoundID: "r1", Phase: PhaseBetting, Multiplier: 1}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Failed to marshal RoundState: %v", err)
	}
	if strings.Contains(string(data), "last_crash_multiplier") {
		t.Errorf("first round should omit last_crash_multiplier: %s", data)
	}

	last := 2.37
	s.LastCrashMultiplier = &last
	data, _ = json.Marshal(s)
	if !strings.Contains(string(data), `"last_crash_multiplier":2.37`) {
		t.Errorf("missing last_crash_multiplier: %s", data)
	}
	if !strings.Contains(string(data), `"phase":"BETTING"`) {
		t.Errorf("phase not encoded as text: %s", data)
	}
}

func TestBet_JSON_OpenBetOmitsCashOut(t *testing.T) {
	data, err := json.Marshal(Bet{ID: "b1", Outcome: OutcomePending})
	if err != nil {
		t.Fatalf("Failed to marshal Bet: %v", err)
	}
	if strings.Contains(string(data), "cash_out_multiplier") {
		t.Errorf("open bet should omit cash_out_multiplier: %s", data)
	}
}
