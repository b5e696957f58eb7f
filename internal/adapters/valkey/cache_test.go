package valkey_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aitorlarra/trailmeet/internal/adapters/valkey"
)

func TestCache_NilReceiverReturnsNotConnected(t *testing.T) {
	var c *valkey.Cache
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, valkey.ErrNotConnected) {
		t.Errorf("Get on nil cache: expected ErrNotConnected, got %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 10); !errors.Is(err, valkey.ErrNotConnected) {
		t.Errorf("Set on nil cache: expected ErrNotConnected, got %v", err)
	}
	if err := c.Delete(ctx, "k"); !errors.Is(err, valkey.ErrNotConnected) {
		t.Errorf("Delete on nil cache: expected ErrNotConnected, got %v", err)
	}

	// Must not panic.
	c.Close()
}
