package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Prober is a ConnectivitySource that derives reachability from
// periodic HEAD requests against a probe URL, emitting edge events to
// subscribers. It stands in for a platform reachability signal on
// hosts that have none; the Monitor itself never polls.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu     sync.Mutex
	online bool
	subs   []func(online bool)
	cancel context.CancelFunc
}

// NewProber creates a prober for the given URL. The first check runs
// synchronously so Online is seeded before any subscriber registers.
func NewProber(url string, interval time.Duration) *Prober {
	p := &Prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: interval},
	}
	p.online = p.check(context.Background())
	return p
}

// Online returns the most recently probed state.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe registers a transition callback.
func (p *Prober) Subscribe(fn func(online bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Start launches the probe loop. Stop cancels it.
func (p *Prober) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.update(p.check(ctx))
			}
		}
	}()
}

// Stop halts the probe loop.
func (p *Prober) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// update records the probed state and notifies subscribers on edges.
func (p *Prober) update(online bool) {
	p.mu.Lock()
	if p.online == online {
		p.mu.Unlock()
		return
	}
	p.online = online
	subs := make([]func(bool), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}
