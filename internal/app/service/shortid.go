package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/sethvargo/go-retry"
)

// ErrGenerationExhausted is returned when no unused short id could be found
// within the retry budget. The loop is bounded on purpose: regenerating
// forever under sustained contention would hang the create path.
var ErrGenerationExhausted = errors.New("short id generation exhausted")

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 6
	// Two of the six characters come from the clock, so ids minted in the
	// same second still share entropy but different seconds rarely collide.
	idTimeChars = 2

	maxGenerateAttempts = 10

	// Bloom filter sizing; false positives only cost a regeneration.
	bloomCapacity = 1_000_000
	bloomFPRate   = 0.001
)

// ShortIDGenerator mints short identifiers and finds one that is not taken.
// The existence pre-check is advisory only; the store's unique constraint is
// the correctness backstop and duplicate inserts still regenerate upstream.
type ShortIDGenerator struct {
	links repository.LinkRepository

	mu   sync.Mutex
	seen *bloom.BloomFilter

	now func() time.Time
}

// NewShortIDGenerator builds a generator backed by the given link store.
func NewShortIDGenerator(links repository.LinkRepository) *ShortIDGenerator {
	return &ShortIDGenerator{
		links: links,
		seen:  bloom.NewWithEstimates(bloomCapacity, bloomFPRate),
		now:   time.Now,
	}
}

// Warm seeds the bloom filter with every id currently in the store so the
// pre-screen is useful from the first request.
func (g *ShortIDGenerator) Warm(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.links.WalkIDs(ctx, func(id string) {
		g.seen.AddString(id)
	}); err != nil {
		return fmt.Errorf("warm id filter: %w", err)
	}
	return nil
}

// Observe records an id as taken. Called for custom paths and after every
// successful create so the filter tracks ids minted since startup.
func (g *ShortIDGenerator) Observe(id string) {
	g.mu.Lock()
	g.seen.AddString(id)
	g.mu.Unlock()
}

// Next returns a candidate id that did not exist in the store at check time.
// Callers must still treat a duplicate-key error on insert as "taken" and
// call Next again; check-then-insert is not atomic.
func (g *ShortIDGenerator) Next(ctx context.Context) (string, error) {
	var id string

	backoff := retry.WithMaxRetries(maxGenerateAttempts-1, retry.NewConstant(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := g.generate()
		if err != nil {
			return err
		}

		g.mu.Lock()
		maybeTaken := g.seen.TestString(candidate)
		g.mu.Unlock()
		if maybeTaken {
			return retry.RetryableError(errCandidateTaken)
		}

		taken, err := g.links.Exists(ctx, candidate)
		if err != nil {
			return fmt.Errorf("check id availability: %w", err)
		}
		if taken {
			g.Observe(candidate)
			return retry.RetryableError(errCandidateTaken)
		}

		id = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, errCandidateTaken) {
			return "", ErrGenerationExhausted
		}
		return "", err
	}

	return id, nil
}

var errCandidateTaken = errors.New("candidate id taken")

// generate mints one candidate: 4 random alphabet characters plus the last
// two base-36 digits of the current Unix timestamp, spliced in at random
// positions.
func (g *ShortIDGenerator) generate() (string, error) {
	ts := strconv.FormatInt(g.now().Unix(), 36)
	stamp := ts[len(ts)-idTimeChars:]

	buf := make([]byte, 0, idLength)
	for i := 0; i < idLength-idTimeChars; i++ {
		c, err := randomIndex(len(idAlphabet))
		if err != nil {
			return "", err
		}
		buf = append(buf, idAlphabet[c])
	}

	for i := 0; i < idTimeChars; i++ {
		pos, err := randomIndex(len(buf) + 1)
		if err != nil {
			return "", err
		}
		buf = append(buf[:pos], append([]byte{stamp[i]}, buf[pos:]...)...)
	}

	return string(buf), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random index: %w", err)
	}
	return int(v.Int64()), nil
}
