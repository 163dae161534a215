// Package client talks to the tournament server's JSON API. It implements
// session.Backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cpacia/classic-server/session"
	"github.com/cpacia/classic-server/tournament"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	ErrUnauthorized = errors.New("incorrect password")

	errServer = errors.New("server error")
)

type Client struct {
	BaseURL  string
	Password string
	Rules    tournament.Rules

	HTTPClient *http.Client
	Clock      clockwork.Clock
	// Reads are attempted Retries+1 times with the delay doubling from
	// Backoff. Writes are never retried.
	Retries int
	Backoff time.Duration

	breaker *gobreaker.CircuitBreaker
}

func New(baseURL, password string, rules tournament.Rules) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Password:   password,
		Rules:      rules,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Clock:      clockwork.NewRealClock(),
		Retries:    3,
		Backoff:    500 * time.Millisecond,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tournament-read",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport and 5xx failures count against the server.
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("circuit", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return c
}

// Fetch reads the stored tournament document.
func (c *Client) Fetch(ctx context.Context) (*tournament.Document, error) {
	delay := c.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			log.Debug().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying tournament fetch")
			timer := c.Clock.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.Chan():
			}
			delay *= 2
		}

		v, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchOnce(ctx)
		})
		if err == nil {
			return v.(*tournament.Document), nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetching tournament after %d attempts: %w", c.Retries+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (*tournament.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tournament", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}
	return tournament.Decode(body, c.Rules)
}

type saveRequest struct {
	Password            string               `json:"password"`
	Data                *tournament.Document `json:"data"`
	ExpectedLastUpdated string               `json:"expectedLastUpdated,omitempty"`
}

// Save posts doc to the save endpoint once. A 409 response wraps
// session.ErrConflict.
func (c *Client) Save(ctx context.Context, doc *tournament.Document, expected string) error {
	payload, err := json.Marshal(saveRequest{
		Password:            c.Password,
		Data:                doc,
		ExpectedLastUpdated: expected,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/save", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	return nil
}

func statusError(code int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	switch {
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", session.ErrConflict, msg)
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d %s", errServer, code, msg)
	}
	return fmt.Errorf("request rejected: %d %s", code, msg)
}

// retryable reports whether a read failure may succeed if repeated:
// transport errors and 5xx responses.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errServer) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
