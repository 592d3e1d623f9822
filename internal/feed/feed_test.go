package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// harness wires a miniredis-backed bus to a memory store whose writes publish
// full-record payloads, the same shape the worker runs in production
func harness(t *testing.T) (*store.Memory, *realtime.Bus) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := store.NewMemory(func(ctx context.Context, channel string, payload []byte) {
		rdb.Publish(ctx, channel, payload)
	})
	return st, realtime.NewBus(realtime.NewHub(rdb))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func joinEntry(addr string) *models.Activity {
	return &models.Activity{UserAddress: addr, Kind: models.ActivityJoin}
}

func TestFeedSeedsFromStore(t *testing.T) {
	st, bus := harness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.AddActivity(ctx, joinEntry(fmt.Sprintf("0xseed%d", i))); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	f := New(st, bus, DefaultLimit)
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer f.Close()

	if got := len(f.Entries()); got != 3 {
		t.Fatalf("entries=%d want 3", got)
	}
	if got := f.Participants(); got != 3 {
		t.Fatalf("participants=%d want 3", got)
	}
}

func TestFeedCapsAtLimitNewestFirst(t *testing.T) {
	st, bus := harness(t)
	ctx := context.Background()

	f := New(st, bus, DefaultLimit)
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer f.Close()

	// Upstream pub/sub subscription attaches asynchronously
	time.Sleep(300 * time.Millisecond)

	// 25 pushes against a cap of 20
	for i := 0; i < 25; i++ {
		entry := joinEntry(fmt.Sprintf("0xuser%02d", i))
		if err := st.AddActivity(ctx, entry); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		entries := f.Entries()
		return len(entries) == DefaultLimit && entries[0].UserAddress == "0xuser24"
	})

	entries := f.Entries()
	if entries[len(entries)-1].UserAddress != "0xuser05" {
		t.Fatalf("oldest visible=%s want 0xuser05", entries[len(entries)-1].UserAddress)
	}
	// Evicted from the window, never from the participants set
	if got := f.Participants(); got != 25 {
		t.Fatalf("participants=%d want 25", got)
	}
}

func TestFeedDropsReplayedNotifications(t *testing.T) {
	st, bus := harness(t)
	ctx := context.Background()

	entry := joinEntry("0xreplayed")
	if err := st.AddActivity(ctx, entry); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	f := New(st, bus, DefaultLimit)
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer f.Close()

	time.Sleep(300 * time.Millisecond)

	// Seeded entry arrives again over the bus, as after a reconnect replay
	waitFor(t, 2*time.Second, func() bool { return len(f.Entries()) == 1 })
	if err := st.AddActivity(ctx, entry); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if err := st.AddActivity(ctx, joinEntry("0xfresh")); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(f.Entries()) == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := len(f.Entries()); got != 2 {
		t.Fatalf("entries=%d want 2 after replay", got)
	}
}

func TestFeedCloseIsIdempotent(t *testing.T) {
	st, bus := harness(t)

	f := New(st, bus, DefaultLimit)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.Close()
	f.Close()
}
