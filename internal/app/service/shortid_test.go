package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShortIDGenerator_NextShape(t *testing.T) {
	gen := NewShortIDGenerator(&mockLinkRepository{})

	for i := 0; i < 50; i++ {
		id, err := gen.Next(context.Background())
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if len(id) != idLength {
			t.Fatalf("expected %d-char id, got %q", idLength, id)
		}
		for _, r := range id {
			if !strings.ContainsRune(idAlphabet, r) {
				t.Fatalf("id %q contains %q outside the alphabet", id, r)
			}
		}
		gen.Observe(id)
	}
}

func TestShortIDGenerator_SkipsTakenIDs(t *testing.T) {
	checks := 0
	links := &mockLinkRepository{
		existsFn: func(ctx context.Context, id string) (bool, error) {
			checks++
			// First candidate is taken, second is free.
			return checks == 1, nil
		},
	}

	gen := NewShortIDGenerator(links)
	id, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a usable id")
	}
	if checks != 2 {
		t.Fatalf("expected 2 availability checks, got %d", checks)
	}
}

func TestShortIDGenerator_Exhaustion(t *testing.T) {
	checks := 0
	links := &mockLinkRepository{
		existsFn: func(ctx context.Context, id string) (bool, error) {
			checks++
			return true, nil
		},
	}

	gen := NewShortIDGenerator(links)
	_, err := gen.Next(context.Background())
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if checks > maxGenerateAttempts {
		t.Fatalf("expected at most %d attempts, got %d", maxGenerateAttempts, checks)
	}
}

func TestShortIDGenerator_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	links := &mockLinkRepository{
		existsFn: func(ctx context.Context, id string) (bool, error) {
			return false, boom
		},
	}

	gen := NewShortIDGenerator(links)
	_, err := gen.Next(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}

func TestShortIDGenerator_WarmSeedsFilter(t *testing.T) {
	links := &mockLinkRepository{
		walkFn: func(ctx context.Context, fn func(id string)) error {
			fn("abc123")
			fn("def456")
			return nil
		},
	}

	gen := NewShortIDGenerator(links)
	if err := gen.Warm(context.Background()); err != nil {
		t.Fatalf("Warm returned error: %v", err)
	}
	if !gen.seen.TestString("abc123") || !gen.seen.TestString("def456") {
		t.Fatal("expected walked ids to be present in the filter")
	}
}
