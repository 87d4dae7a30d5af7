package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

type fakeHeaderSource struct {
	calls int
	fail  bool
}

func (f *fakeHeaderSource) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("rpc unavailable")
	}
	return &types.Header{
		Number: number,
		Time:   1700000000 + number.Uint64(),
	}, nil
}

func TestBlockClockMemoizes(t *testing.T) {
	headers := &fakeHeaderSource{}
	clock := NewBlockClock(headers)
	ctx := context.Background()

	want := time.Unix(1700000042, 0).UTC()
	for i := 0; i < 5; i++ {
		ts, err := clock.TimestampOf(ctx, 42)
		if err != nil {
			t.Fatalf("TimestampOf failed: %v", err)
		}
		if !ts.Equal(want) {
			t.Fatalf("timestamp = %v, want %v", ts, want)
		}
	}
	if headers.calls != 1 {
		t.Errorf("header fetched %d times, want 1", headers.calls)
	}
}

func TestBlockClockResolveAll(t *testing.T) {
	headers := &fakeHeaderSource{}
	clock := NewBlockClock(headers)

	blocks := []uint64{7, 9, 7, 7, 9, 11}
	if err := clock.ResolveAll(context.Background(), blocks); err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if headers.calls != 3 {
		t.Errorf("header fetched %d times, want 3 distinct", headers.calls)
	}
	if clock.CachedBlocks() != 3 {
		t.Errorf("cached blocks = %d, want 3", clock.CachedBlocks())
	}
}

func TestBlockClockPropagatesFetchError(t *testing.T) {
	clock := NewBlockClock(&fakeHeaderSource{fail: true})
	if _, err := clock.TimestampOf(context.Background(), 1); err == nil {
		t.Fatal("expected error from failing header source")
	}
	if clock.CachedBlocks() != 0 {
		t.Error("failed lookup must not be cached")
	}
}
