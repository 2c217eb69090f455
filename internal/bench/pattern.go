package bench

import (
	"math/rand/v2"
	"strings"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

// Pattern decides the order in which a round releases its objects.
type Pattern string

// Patterns
const (
	// LIFO releases the newest object first
	LIFO Pattern = config.PatternLIFO
	// FIFO releases the oldest object first
	FIFO Pattern = config.PatternFIFO
	// Random releases in a shuffled order
	Random Pattern = config.PatternRandom
	// Handoff allocates on producer goroutines and releases on consumers
	Handoff Pattern = config.PatternHandoff
)

// ParsePattern parses a pattern name.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(strings.ToLower(s)); p {
	case LIFO, FIFO, Random, Handoff:
		return p, nil
	}
	return "", poolerrors.Newf(poolerrors.ErrorTypeConfig, "unknown pattern %q", s).
		WithDetail("valid", "lifo, fifo, random, handoff")
}

// releaseOrder fills order with the release sequence for n objects.
func (p Pattern) releaseOrder(order []int, rng *rand.Rand) {
	n := len(order)
	for i := range order {
		switch p {
		case LIFO:
			order[i] = n - 1 - i
		default:
			order[i] = i
		}
	}
	if p == Random {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
}
