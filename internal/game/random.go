package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Rand is the source of randomness for shuffles and option picks.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}

// NewRand returns a PCG-backed source seeded from crypto/rand.
func NewRand() Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return NewSeededRand(rand.Uint64(), rand.Uint64())
	}
	return NewSeededRand(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]))
}

// NewSeededRand returns a deterministic source, safe for concurrent use.
func NewSeededRand(seed1, seed2 uint64) Rand {
	return &lockedRand{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func shuffled[T any](r Rand, in []T) []T {
	out := append([]T(nil), in...)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewRoomCode returns a random four letter join code.
func NewRoomCode(r Rand) string {
	buf := make([]byte, RoomCodeLength)
	for i := range buf {
		buf[i] = roomCodeAlphabet[r.IntN(len(roomCodeAlphabet))]
	}
	return string(buf)
}
