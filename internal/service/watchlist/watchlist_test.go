package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) *Store {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(cli, time.Second)
}

func TestAddContainsRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, ListWatch, "aapl"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// tickers are normalized to upper case
	ok, err := s.Contains(ctx, ListWatch, "AAPL")
	if err != nil || !ok {
		t.Fatalf("contains after add = %v, %v", ok, err)
	}
	if err := s.Remove(ctx, ListWatch, "AAPL"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err = s.Contains(ctx, ListWatch, "AAPL")
	if err != nil || ok {
		t.Fatalf("contains after remove = %v, %v", ok, err)
	}
}

func TestListsAreIndependent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, ListIgnore, "TSLA"); err != nil {
		t.Fatalf("add: %v", err)
	}
	onWatch, err := s.Contains(ctx, ListWatch, "TSLA")
	if err != nil || onWatch {
		t.Fatalf("ignore entry leaked into watch list")
	}
}

func TestMembers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, ticker := range []string{"AAPL", "MSFT", "NVDA"} {
		if err := s.Add(ctx, ListWatch, ticker); err != nil {
			t.Fatalf("add %s: %v", ticker, err)
		}
	}
	members, err := s.Members(ctx, ListWatch)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("members len = %d, want 3", len(members))
	}
}

func TestMutationInvalidatesMemo(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// prime a negative memo entry, then mutate
	if ok, _ := s.Contains(ctx, ListWatch, "AMD"); ok {
		t.Fatalf("unexpected membership")
	}
	if err := s.Add(ctx, ListWatch, "AMD"); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, err := s.Contains(ctx, ListWatch, "AMD")
	if err != nil || !ok {
		t.Fatalf("memo must be refreshed on mutation, got %v, %v", ok, err)
	}
}
