package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	MIN_MULTIPLIER = 1.00
	MAX_MULTIPLIER = 1000000.00
	HOUSE_EDGE     = 0.01 // 1%
)

// HashAndMapToMultiplier generates a provably fair crash multiplier
// using HMAC-SHA256 and exponential distribution
func HashAndMapToMultiplier(serverSeed, clientSeed string, nonce int) float64 {
	data := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	hashHex := hex.EncodeToString(h.Sum(nil))

	// 64 bits of the digest
	i := new(big.Int)
	i.SetString(hashHex[:16], 16)

	const maxValue = 18446744073709551616.0
	r := float64(i.Uint64()) / maxValue

	// House edge: 1% instant crash
	if r < HOUSE_EDGE {
		return MIN_MULTIPLIER
	}

	crashValue := (100.0 - HOUSE_EDGE*100) / (100.0 - r*100.0)
	final := float64(int(crashValue*100)) / 100.0

	if final < MIN_MULTIPLIER {
		return MIN_MULTIPLIER
	}
	if final > MAX_MULTIPLIER {
		return MAX_MULTIPLIER
	}
	return final
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifyRound allows players to verify the fairness of a round
func VerifyRound(serverSeed, clientSeed string, nonce int, claimedMultiplier float64) bool {
	diff := HashAndMapToMultiplier(serverSeed, clientSeed, nonce) - claimedMultiplier
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}

// FairRound is the committed randomness behind one round.
type FairRound struct {
	RoundID    string
	ServerSeed string
	ClientSeed string
	Commitment string
	Nonce      int
	CrashPoint float64
}

// ProvablyFairPolicy precomputes each round's crash point from a committed
// server seed and crashes on the first tick at or above it. The seed is only
// revealed by EndRound.
type ProvablyFairPolicy struct {
	nonce   int
	current FairRound
	seeds   func() string
}

func NewProvablyFairPolicy() *ProvablyFairPolicy {
	return &ProvablyFairPolicy{seeds: GenerateSeed}
}

func (p *ProvablyFairPolicy) BeginRound(roundID string) map[string]interface{} {
	p.nonce++
	serverSeed := p.seeds()
	clientSeed := p.seeds()
	p.current = FairRound{
		RoundID:    roundID,
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Commitment: HashCommitment(serverSeed),
		Nonce:      p.nonce,
		CrashPoint: HashAndMapToMultiplier(serverSeed, clientSeed, p.nonce),
	}
	return map[string]interface{}{
		"commitment":  p.current.Commitment,
		"client_seed": clientSeed,
		"nonce":       p.nonce,
	}
}

func (p *ProvablyFairPolicy) Decide(multiplier float64, _ int) bool {
	return multiplier >= p.current.CrashPoint
}

func (p *ProvablyFairPolicy) EndRound() map[string]interface{} {
	return map[string]interface{}{
		"server_seed": p.current.ServerSeed,
		"client_seed": p.current.ClientSeed,
		"nonce":       p.current.Nonce,
		"crash_point": p.current.CrashPoint,
	}
}

// Current returns the round in progress, including its unrevealed seed.
func (p *ProvablyFairPolicy) Current() FairRound {
	return p.current
}
