package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

// Snapshot is an immutable copy of the poller's state after a successful poll.
type Snapshot struct {
	Events    []string
	UpdatedAt time.Time
}

// Config holds tunable parameters for a Poller.
type Config struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	// OnUpdate is called from the poll goroutine after every successful poll.
	OnUpdate func(Snapshot)
}

// Poller keeps the event list in sync with the server by polling on a fixed
// interval. The list is only ever replaced wholesale by a successful fetch;
// failed fetches are logged and leave it untouched.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	onUpdate func(Snapshot)

	mu        sync.RWMutex
	events    []string
	updatedAt time.Time

	lifeMu  sync.Mutex
	mounted bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}
}

// NewPoller creates an unmounted poller. Zero config values fall back to the
// shared defaults; the request timeout never exceeds the interval so a slow
// fetch cannot outlive its tick.
func NewPoller(fetcher Fetcher, conf ...Config) *Poller {
	interval := model.DefaultPollInterval
	timeout := model.DefaultRequestTimeout
	var onUpdate func(Snapshot)
	if len(conf) > 0 {
		if conf[0].Interval > 0 {
			interval = conf[0].Interval
		}
		if conf[0].RequestTimeout > 0 {
			timeout = conf[0].RequestTimeout
		}
		onUpdate = conf[0].OnUpdate
	}
	if timeout > interval {
		timeout = interval
	}

	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
		onUpdate: onUpdate,
		events:   []string{},
		refresh:  make(chan struct{}, 1),
	}
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Mount polls once immediately and then on every interval until Unmount is
// called or ctx is cancelled. Mounting twice, or after Unmount, is a no-op.
func (p *Poller) Mount(ctx context.Context) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.mounted || p.stopped {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.mounted = true
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(loopCtx, p.done)
}

// Unmount stops the poll loop and waits for it to exit. After Unmount returns
// no further fetch is issued and OnUpdate is not called again. It is safe to
// call more than once and from any goroutine.
func (p *Poller) Unmount() {
	p.lifeMu.Lock()
	if p.stopped {
		p.lifeMu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh asks a mounted poller to poll now. The request is handled by the
// poll loop, so it never overlaps a scheduled fetch. Extra requests made while
// one is pending are dropped.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.refresh:
			p.Poll(ctx)
		}
	}
}

// Poll performs one fetch-and-replace cycle. On failure the error is logged,
// the current list is kept and the error is returned for callers that want
// it. Poll must not be called concurrently with a mounted poll loop.
func (p *Poller) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	events, err := p.fetcher.FetchEvents(fetchCtx)
	cancel()
	if err != nil {
		log.Printf("feed: %v", err)
		return err
	}
	// A fetch that completed while unmounting is discarded.
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := Snapshot{
		Events:    append([]string{}, events...),
		UpdatedAt: time.Now(),
	}

	p.mu.Lock()
	p.events = snap.Events
	p.updatedAt = snap.UpdatedAt
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(Snapshot{
			Events:    append([]string{}, snap.Events...),
			UpdatedAt: snap.UpdatedAt,
		})
	}
	return nil
}

// Events returns a copy of the current event list.
func (p *Poller) Events() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string{}, p.events...)
}

// Snapshot returns the current event list and the time of the last
// successful poll (zero before the first success).
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Events:    append([]string{}, p.events...),
		UpdatedAt: p.updatedAt,
	}
}
