package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/cenkalti/backoff/v4"
)

// StockPoller periodically refreshes stock for every live cart. It is a
// display aid only: checkout always fetches stock itself.
type StockPoller struct {
	source     StockSource
	sessions   *SessionRegistry
	interval   time.Duration
	maxRetries uint64
	newBackOff func() backoff.BackOff
	sweepers   []sweeper
	logger     *slog.Logger
}

// Sweeper drops in-memory state nobody has used since cutoff and reports how
// many entries went.
type Sweeper interface {
	Sweep(cutoff time.Time) int
}

type sweeper struct {
	name   string
	target Sweeper
	ttl    time.Duration
}

func NewStockPoller(source StockSource, sessions *SessionRegistry, interval time.Duration, maxRetries uint64) *StockPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &StockPoller{
		source:     source,
		sessions:   sessions,
		interval:   interval,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = interval
			return b
		},
		logger: slog.Default().With(slog.String("component", "stock_poller")),
	}
}

// WithBackOff replaces the retry schedule used within one poll.
func (p *StockPoller) WithBackOff(factory func() backoff.BackOff) *StockPoller {
	p.newBackOff = factory

	return p
}

// WithSweeper has every tick evict entries of target idle for longer than ttl.
// A non-positive ttl disables eviction for target.
func (p *StockPoller) WithSweeper(name string, target Sweeper, ttl time.Duration) *StockPoller {
	if ttl > 0 {
		p.sweepers = append(p.sweepers, sweeper{name: name, target: target, ttl: ttl})
	}

	return p
}

// Sweep runs every registered sweeper against now and returns the total evicted.
func (p *StockPoller) Sweep(now time.Time) int {
	total := 0
	for _, sw := range p.sweepers {
		evicted := sw.target.Sweep(now.Add(-sw.ttl))
		if evicted > 0 {
			p.logger.Debug("Evicted idle entries", slog.String("kind", sw.name), slog.Int("count", evicted))
		}
		total += evicted
	}

	return total
}

// Run polls until ctx is cancelled.
func (p *StockPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Stock poller started", slog.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stock poller stopped")
			return
		case now := <-ticker.C:
			p.Sweep(now)
			p.Poll(ctx)
		}
	}
}

// Poll runs one round. Transient failures are retried with backoff and then
// dropped quietly; the next tick tries again.
func (p *StockPoller) Poll(ctx context.Context) int {
	metrics.SetLiveCarts(len(p.sessions.Stores()))

	ids := p.sessions.ProductIDs()
	if len(ids) == 0 {
		return 0
	}

	tags := p.sessions.Tags()

	var snapshots map[string]models.StockSnapshot
	operation := func() error {
		var err error
		snapshots, err = p.source.FetchStock(ctx, ids)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		metrics.RecordStockPoll("error")
		p.logger.Debug("Stock poll failed", slog.String("error", err.Error()))
		return 0
	}

	if ctx.Err() != nil {
		return 0
	}

	applied := p.sessions.ApplyStock(tags, snapshots)
	metrics.RecordStockPoll("ok")

	return applied
}
