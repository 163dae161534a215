package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultRetryDelay   = 5 * time.Second
)

// Poller refreshes a session on a fixed interval. After a failed fetch it
// tries again sooner, on RetryDelay.
type Poller struct {
	Session    *Session
	Clock      clockwork.Clock
	Interval   time.Duration
	RetryDelay time.Duration

	// OnRefresh, if set, is called after each refresh that replaced the
	// working copy.
	OnRefresh func()
}

func NewPoller(s *Session) *Poller {
	return &Poller{
		Session:    s,
		Clock:      s.clock,
		Interval:   DefaultPollInterval,
		RetryDelay: DefaultRetryDelay,
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	for {
		wait := p.Interval
		applied, err := p.Session.Refresh(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Dur("retry", p.RetryDelay).Msg("Refresh failed")
			wait = p.RetryDelay
		case applied && p.OnRefresh != nil:
			p.OnRefresh()
		}

		timer := p.Clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}
