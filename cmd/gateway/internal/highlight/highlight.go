// Package highlight derives the transient "just changed" flag of dashboard rows
// from the market's global stamp and the per-asset stamps.
package highlight

import (
	"sort"
	"sync"
	"time"
)

const (
	DefaultMatchWindow = 100 * time.Millisecond
	DefaultHold        = 1000 * time.Millisecond
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	MatchWindow time.Duration
	Hold        time.Duration
	// OnMark receives each batch produced from updates fed through Record.
	OnMark      func(ids []string)
}

type batch struct {
	stamps map[string]time.Time
	timer  Timer
}

// Coordinator marks the assets written together with a global stamp change and
// clears them Hold later, with one timer per batch.
type Coordinator struct {
	clock   Clock
	window  time.Duration
	hold    time.Duration
	onMark  func(ids []string)
	onClear func(ids []string)

	mu         sync.Mutex
	seen       bool
	lastGlobal time.Time
	nextID     int
	batches    map[int]*batch
	stopped    bool

	// pending state for Record
	known   map[string]time.Time
	global  time.Time
	flusher Timer
}

func New(clock Clock, opts Options, onClear func(ids []string)) *Coordinator {
	if opts.MatchWindow < 0 {
		opts.MatchWindow = DefaultMatchWindow
	}
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	return &Coordinator{
		clock:   clock,
		window:  opts.MatchWindow,
		hold:    opts.Hold,
		onMark:  opts.OnMark,
		onClear: onClear,
		batches: make(map[int]*batch),
		known:   make(map[string]time.Time),
	}
}

// Observe reacts to a global stamp. An unchanged global is ignored. Every id whose
// stamp lies within the match window of global joins one new batch, returned sorted.
func (c *Coordinator) Observe(global time.Time, stamps map[string]time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || (c.seen && global.Equal(c.lastGlobal)) {
		return nil
	}
	c.seen = true
	c.lastGlobal = global

	marked := make(map[string]time.Time)
	var newest time.Time
	for id, stamp := range stamps {
		if absDuration(global.Sub(stamp)) > c.window {
			continue
		}
		marked[id] = stamp
		if stamp.After(newest) {
			newest = stamp
		}
	}
	if len(marked) == 0 {
		return nil
	}

	id := c.nextID
	c.nextID++
	b := &batch{stamps: marked}
	c.batches[id] = b

	delay := newest.Add(c.hold).Sub(c.clock.Now())
	if delay < 0 {
		delay = 0
	}
	b.timer = c.clock.AfterFunc(delay, func() { c.expire(id) })

	return sortedIDs(marked)
}

func (c *Coordinator) expire(id int) {
	c.mu.Lock()
	b, ok := c.batches[id]
	if ok {
		delete(c.batches, id)
	}
	stopped := c.stopped
	c.mu.Unlock()

	if ok && !stopped && c.onClear != nil {
		c.onClear(sortedIDs(b.stamps))
	}
}

// Record feeds one written asset. Records arriving within the match window of
// the first one are observed together, the way a batched render would see them.
func (c *Coordinator) Record(id string, stamp, global time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.known[id] = stamp
	if global.After(c.global) {
		c.global = global
	}
	if c.flusher == nil {
		c.flusher = c.clock.AfterFunc(c.window, c.flush)
	}
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	c.flusher = nil
	global := c.global
	stamps := make(map[string]time.Time, len(c.known))
	for id, s := range c.known {
		stamps[id] = s
	}
	c.mu.Unlock()

	ids := c.Observe(global, stamps)
	if len(ids) > 0 && c.onMark != nil {
		c.onMark(ids)
	}
}

// IsHighlighted reports whether a live batch holds id with stamp <= now < stamp+Hold.
func (c *Coordinator) IsHighlighted(id string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlightedLocked(id, now)
}

func (c *Coordinator) highlightedLocked(id string, now time.Time) bool {
	for _, b := range c.batches {
		stamp, ok := b.stamps[id]
		if !ok {
			continue
		}
		if !now.Before(stamp) && now.Before(stamp.Add(c.hold)) {
			return true
		}
	}
	return false
}

func (c *Coordinator) Highlighted(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := make(map[string]time.Time)
	for _, b := range c.batches {
		for id := range b.stamps {
			if c.highlightedLocked(id, now) {
				set[id] = time.Time{}
			}
		}
	}
	return sortedIDs(set)
}

// Stop cancels every pending timer. Later calls to Observe and Record do nothing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.flusher != nil {
		c.flusher.Stop()
		c.flusher = nil
	}
	for id, b := range c.batches {
		b.timer.Stop()
		delete(c.batches, id)
	}
}

func sortedIDs(m map[string]time.Time) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
