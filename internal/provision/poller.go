// Package provision makes sure a named model is present on a model server
// before it is used, pulling it and polling the pull status when it is not.
package provision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// StatusSuccess is the pull status reported once a model is fully fetched.
	StatusSuccess = "success"

	// DefaultPollInterval is the delay after every pull request.
	DefaultPollInterval = 5 * time.Second
)

// Model is an entry of a model server's listing.
type Model struct {
	Name       string
	Digest     string
	Size       int64
	ModifiedAt time.Time
}

// Client is the model server operations the poller relies on.
type Client interface {
	// ListModels returns every model currently present on the server.
	ListModels(ctx context.Context) ([]Model, error)
	// DeleteModel removes a model and reports whether the server accepted it.
	DeleteModel(ctx context.Context, name string) (bool, error)
	// PullModel requests a fetch of name and returns the latest status token.
	PullModel(ctx context.Context, name string) (string, error)
}

// Poller checks, removes and fetches models through a Client. It holds no
// state between calls; the server is the source of truth.
type Poller struct {
	client      Client
	interval    time.Duration
	maxAttempts int
	maxDuration time.Duration
	clock       Clock
	logger      *zap.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithPollInterval sets the delay after each pull request.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithMaxAttempts bounds the number of pulls EnsurePresent makes when retry is
// enabled. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		p.maxAttempts = n
	}
}

// WithMaxDuration bounds the total time EnsurePresent spends polling when
// retry is enabled. Zero means unbounded.
func WithMaxDuration(d time.Duration) Option {
	return func(p *Poller) {
		p.maxDuration = d
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithLogger sets the logger used for pull progress.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

// New creates a Poller for client.
func New(client Client, opts ...Option) *Poller {
	p := &Poller{
		client:   client,
		interval: DefaultPollInterval,
		clock:    SystemClock,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Models returns the server's model listing.
func (p *Poller) Models(ctx context.Context) ([]Model, error) {
	return p.client.ListModels(ctx)
}

// IsAvailable reports whether the server lists a model named exactly name.
func (p *Poller) IsAvailable(ctx context.Context, name string) (bool, error) {
	models, err := p.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes name from the server. It returns false without contacting
// the delete endpoint when the model is not listed.
func (p *Poller) Remove(ctx context.Context, name string) (bool, error) {
	p.logger.Info("delete model", zap.String("model", name))

	available, err := p.IsAvailable(ctx, name)
	if err != nil {
		return false, err
	}
	if !available {
		p.logger.Info("model not found", zap.String("model", name))
		return false, nil
	}

	return p.client.DeleteModel(ctx, name)
}

// EnsurePresent pulls name and waits the poll interval. With retry disabled
// it returns the status of that single pull, whatever it is. With retry
// enabled it keeps pulling until the status is StatusSuccess, the context is
// cancelled, or a configured ceiling is hit (*ProvisioningTimeoutError).
//
// A failed pull ends the call when retry is disabled and counts as a
// non-success status when it is enabled.
func (p *Poller) EnsurePresent(ctx context.Context, name string, retry bool) (string, error) {
	start := p.clock.Now()
	status := ""
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return status, fmt.Errorf("pull of model '%s' cancelled: %w", name, err)
		}

		p.logger.Info("start pulling model", zap.String("model", name), zap.Int("attempt", attempt))
		s, err := p.client.PullModel(ctx, name)
		if err != nil {
			if !retry {
				return "", err
			}
			p.logger.Warn("pull failed", zap.String("model", name), zap.Int("attempt", attempt), zap.Error(err))
			status, lastErr = "", err
		} else {
			status, lastErr = s, nil
			p.logger.Info("pulling model", zap.String("model", name), zap.String("status", status))
		}

		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return status, fmt.Errorf("pull of model '%s' cancelled: %w", name, err)
		}

		if !retry || status == StatusSuccess {
			return status, nil
		}

		elapsed := p.clock.Now().Sub(start)
		if (p.maxAttempts > 0 && attempt >= p.maxAttempts) || (p.maxDuration > 0 && elapsed >= p.maxDuration) {
			return status, &ProvisioningTimeoutError{
				Model:      name,
				Attempts:   attempt,
				Elapsed:    elapsed,
				LastStatus: status,
				Err:        lastErr,
			}
		}
	}
}
