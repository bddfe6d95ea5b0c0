// SPDX-License-Identifier: GPL-3.0-only

package accessory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often device states are refreshed.
const DefaultPollInterval = 30 * time.Second

// PollHandler is called for every dimmer on each poll tick.
type PollHandler func(ctx context.Context, d *Dimmer)

// Lister returns the dimmers to poll.
type Lister interface {
	List() []*Dimmer
}

// Poller periodically refreshes dimmer states so that changes made outside
// HomeKit (the vendor app, wall switches) reach subscribers.
type Poller struct {
	lister   Lister
	interval time.Duration
	handler  PollHandler

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller calling handler for every dimmer each interval.
func NewPoller(lister Lister, interval time.Duration, handler PollHandler) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		handler:  handler,
	}
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("poller already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)

	log.Info().Dur("interval", p.interval).Msg("State poller started")
	return nil
}

// Stop stops the poller and waits for the current tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("State poller stopped")
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs the handler once for every dimmer.
func (p *Poller) Poll(ctx context.Context) {
	for _, d := range p.lister.List() {
		if ctx.Err() != nil {
			return
		}
		p.handler(ctx, d)
	}
}
