package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
	"nodegraph/internal/metrics"
	"nodegraph/internal/repository"
)

// BreakerSettings bound how long a failing store keeps being hit
type BreakerSettings struct {
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	// Interval after which closed-state counts reset
	Interval time.Duration
	// Timeout spent open before probing again
	Timeout time.Duration
	// FailureThreshold is the number of consecutive unavailable errors that
	// opens the breaker
	FailureThreshold uint32
}

// Options configures a Store
type Options struct {
	BusyTimeout  time.Duration
	QueryTimeout time.Duration
	IDStrategy   domain.IDStrategy
	Breaker      BreakerSettings
	Logger       *zap.Logger
	Metrics      *metrics.Collector
	// NewID generates node ids under domain.IDGenerated; uuid.NewString when nil
	NewID func() string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		QueryTimeout: 5 * time.Second,
		IDStrategy:   domain.IDGenerated,
		Breaker: BreakerSettings{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Store implements repository.Store using SQLite
type Store struct {
	db           *sql.DB
	breaker      *gobreaker.CircuitBreaker
	queryTimeout time.Duration
	idStrategy   domain.IDStrategy
	newID        func() string
	logger       *zap.Logger
	metrics      *metrics.Collector
}

var _ repository.Store = (*Store)(nil)

// Open opens the database at path. The schema is not created; call
// Initialize for that.
func Open(path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.IDStrategy == "" {
		opts.IDStrategy = domain.IDGenerated
	}

	db, err := sql.Open("sqlite", dsn(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One logical connection; also keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("open", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:           db,
		queryTimeout: opts.QueryTimeout,
		idStrategy:   opts.IDStrategy,
		newID:        opts.NewID,
		logger:       opts.Logger.Named("store"),
		metrics:      opts.Metrics,
	}
	s.breaker = s.newBreaker(opts.Breaker)

	return s, nil
}

// dsn builds the driver connection string with per-connection pragmas
func dsn(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	if busyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

func (s *Store) newBreaker(cfg BreakerSettings) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			s.metrics.SetBreakerState(breakerGauge(to))
		},
		// Only connectivity failures count against the store
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !apperr.IsStoreUnavailable(err)
		},
	})
}

func breakerGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the store is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.run(ctx, "ping", func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// IDStrategy returns the configured id strategy
func (s *Store) IDStrategy() domain.IDStrategy {
	return s.idStrategy
}

// run executes fn under the query timeout and the circuit breaker, records
// metrics, and classifies the resulting error
func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, classify(op, fn(ctx))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = apperr.NewStoreUnavailable(fmt.Sprintf("%s: store circuit open", op)).WithCause(err)
	}

	s.metrics.ObserveStore(op, err, time.Since(start))
	return err
}

// withTx runs fn inside a transaction, rolling back on any error
func (s *Store) withTx(ctx context.Context, fn func(ex repository.Executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
