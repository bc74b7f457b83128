package highlight_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/highlight"
	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/testutils"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type clears struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *clears) record(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, ids)
}

func (c *clears) get() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

func setup(opts highlight.Options) (*highlight.Coordinator, *testutils.MockClock, *clears) {
	clock := testutils.NewMockClock(epoch)
	cl := &clears{}
	if opts.MatchWindow == 0 {
		opts.MatchWindow = 100 * time.Millisecond
	}
	if opts.Hold == 0 {
		opts.Hold = time.Second
	}
	return highlight.New(clock, opts, cl.record), clock, cl
}

func TestObserve_FlaggedForHoldWindow(t *testing.T) {
	c, _, _ := setup(highlight.Options{})
	T := epoch

	got := c.Observe(T, map[string]time.Time{"bitcoin": T})
	if !reflect.DeepEqual(got, []string{"bitcoin"}) {
		t.Fatalf("Expected [bitcoin], got %v", got)
	}

	for _, offset := range []time.Duration{0, time.Millisecond, 500 * time.Millisecond, 999 * time.Millisecond} {
		if !c.IsHighlighted("bitcoin", T.Add(offset)) {
			t.Errorf("Expected highlight at T+%v", offset)
		}
	}
	if c.IsHighlighted("bitcoin", T.Add(-time.Millisecond)) {
		t.Error("Highlight must not start before the update")
	}
	for _, offset := range []time.Duration{time.Second, 2 * time.Second} {
		if c.IsHighlighted("bitcoin", T.Add(offset)) {
			t.Errorf("Highlight must be gone at T+%v", offset)
		}
	}
}

func TestObserve_MatchWindow(t *testing.T) {
	c, _, _ := setup(highlight.Options{})
	global := epoch.Add(time.Second)

	got := c.Observe(global, map[string]time.Time{
		"bitcoin":  global,
		"ethereum": global.Add(-100 * time.Millisecond),
		"tether":   global.Add(-101 * time.Millisecond),
		"solana":   epoch,
	})

	want := []string{"bitcoin", "ethereum"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if c.IsHighlighted("tether", global) {
		t.Error("tether is outside the match window")
	}
}

func TestObserve_UnchangedGlobalIgnored(t *testing.T) {
	c, clock, _ := setup(highlight.Options{})
	stamps := map[string]time.Time{"bitcoin": epoch}

	if got := c.Observe(epoch, stamps); len(got) != 1 {
		t.Fatalf("Expected one marked id, got %v", got)
	}
	stamps["ethereum"] = epoch
	if got := c.Observe(epoch, stamps); got != nil {
		t.Errorf("Same global must be ignored, got %v", got)
	}
	if clock.Pending() != 1 {
		t.Errorf("Expected one batch timer, got %d", clock.Pending())
	}
}

func TestObserve_SharedTimerClearsBatch(t *testing.T) {
	c, clock, cl := setup(highlight.Options{})
	c.Observe(epoch, map[string]time.Time{"bitcoin": epoch, "bnb": epoch.Add(-50 * time.Millisecond)})

	if clock.Pending() != 1 {
		t.Fatalf("Expected a single shared timer, got %d", clock.Pending())
	}

	clock.Advance(999 * time.Millisecond)
	if len(cl.get()) != 0 {
		t.Fatalf("Cleared too early: %v", cl.get())
	}

	clock.Advance(time.Millisecond)
	want := [][]string{{"bitcoin", "bnb"}}
	if !reflect.DeepEqual(cl.get(), want) {
		t.Errorf("Expected clear %v, got %v", want, cl.get())
	}
	if got := c.Highlighted(clock.Now()); len(got) != 0 {
		t.Errorf("Expected nothing highlighted, got %v", got)
	}
}

func TestObserve_OverlappingBatches(t *testing.T) {
	c, clock, cl := setup(highlight.Options{})
	c.Observe(epoch, map[string]time.Time{"bitcoin": epoch})

	clock.Advance(600 * time.Millisecond)
	second := clock.Now()
	c.Observe(second, map[string]time.Time{"bitcoin": epoch, "solana": second})

	if got := c.Highlighted(second); !reflect.DeepEqual(got, []string{"bitcoin", "solana"}) {
		t.Errorf("Expected both highlighted, got %v", got)
	}

	clock.Advance(400 * time.Millisecond)
	if got := c.Highlighted(clock.Now()); !reflect.DeepEqual(got, []string{"solana"}) {
		t.Errorf("Expected only solana at T+1000, got %v", got)
	}
	if len(cl.get()) != 1 {
		t.Errorf("Expected first batch cleared, got %v", cl.get())
	}

	clock.Advance(600 * time.Millisecond)
	if len(cl.get()) != 2 {
		t.Errorf("Expected second batch cleared, got %v", cl.get())
	}
}

func TestRecord_CoalescesWithinWindow(t *testing.T) {
	var marked [][]string
	c, clock, _ := setup(highlight.Options{OnMark: func(ids []string) { marked = append(marked, ids) }})

	c.Record("ethereum", epoch, epoch)
	clock.Advance(2 * time.Millisecond)
	c.Record("tether", epoch.Add(2*time.Millisecond), epoch.Add(2*time.Millisecond))

	if len(marked) != 0 {
		t.Fatal("Nothing may be marked before the window closes")
	}
	clock.Advance(100 * time.Millisecond)

	want := [][]string{{"ethereum", "tether"}}
	if !reflect.DeepEqual(marked, want) {
		t.Errorf("Expected %v, got %v", want, marked)
	}
}

func TestStop_CancelsTimers(t *testing.T) {
	c, clock, cl := setup(highlight.Options{})
	c.Observe(epoch, map[string]time.Time{"bitcoin": epoch})
	c.Record("ethereum", epoch, epoch.Add(time.Second))

	c.Stop()
	if clock.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", clock.Pending())
	}
	clock.Advance(5 * time.Second)
	if len(cl.get()) != 0 {
		t.Errorf("No clear may fire after Stop, got %v", cl.get())
	}
	if got := c.Observe(epoch.Add(time.Hour), map[string]time.Time{"bnb": epoch.Add(time.Hour)}); got != nil {
		t.Errorf("Observe after Stop must do nothing, got %v", got)
	}
}
