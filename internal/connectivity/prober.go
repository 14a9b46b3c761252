package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DefaultProbeInterval is how often Run re-checks reachability.
const DefaultProbeInterval = 30 * time.Second

// Prober is a Monitor that determines connectivity by issuing a HEAD
// request against a known-reachable URL. Any HTTP response counts as
// online; only a transport-level failure counts as offline.
type Prober struct {
	url      string
	client   *http.Client
	interval time.Duration

	state *Manual // tracks last observed state and fans out transitions
}

// NewProber creates a Prober against url. The prober assumes online
// until the first probe says otherwise.
func NewProber(url string) *Prober {
	return &Prober{
		url:      url,
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: DefaultProbeInterval,
		state:    NewManual(true),
	}
}

// Poll implements Monitor with a one-shot probe.
func (p *Prober) Poll(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	resp.Body.Close()
	return true, nil
}

// Subscribe implements Monitor. Transitions fire only while Run is
// active, since the prober has no other source of state changes.
func (p *Prober) Subscribe(fn func(online bool)) func() {
	return p.state.Subscribe(fn)
}

// Run probes at a fixed interval until ctx is cancelled, notifying
// subscribers on each transition.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online, err := p.Poll(ctx)
			if err != nil {
				slog.Debug("connectivity probe failed", "url", p.url, "error", err)
				continue
			}
			p.state.SetOnline(online)
		}
	}
}
