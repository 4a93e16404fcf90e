package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nhatthm/otelsql"
	leadcapture "github.com/phbpx/leadcapture"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned when no connection string was supplied.
var ErrNotConfigured = fmt.Errorf("database url not configured: %w", leadcapture.ErrStoreUnavailable)

// Config is the required properties to use the database.
type Config struct {
	URL            string
	Name           string
	MaxIdleConns   int
	MaxOpenConns   int
	ConnectTimeout time.Duration
}

// Pool is a lazily opened database handle shared by every request. The first
// caller establishes the connection; callers arriving while it is in flight
// wait for the same attempt. Failures are not remembered, so the next caller
// tries again.
type Pool struct {
	cfg        Config
	driverName string
	onConnect  func(context.Context, *sqlx.DB) error

	// dial opens a handle and verifies it answers.
	dial func(ctx context.Context) (*sqlx.DB, error)

	group singleflight.Group
	mu    sync.RWMutex
	db    *sqlx.DB
}

// NewPool registers the traced postgres driver and returns an unopened pool.
// onConnect, when not nil, runs once before the shared handle is handed out.
// It gets a handle of its own which is closed afterwards, so it may close it.
func NewPool(cfg Config, onConnect func(context.Context, *sqlx.DB) error) (*Pool, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	// Register the otelsql wrapper for the provided postgres driver.
	driverName, err := otelsql.Register("postgres",
		otelsql.AllowRoot(),
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithDatabaseName(cfg.Name),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, err
	}

	p := Pool{
		cfg:        cfg,
		driverName: driverName,
		onConnect:  onConnect,
	}
	p.dial = p.dialDB
	return &p, nil
}

// DB returns the shared connection, opening it if needed.
func (p *Pool) DB(ctx context.Context) (*sqlx.DB, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	if p.cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	ch := p.group.DoChan("connect", func() (interface{}, error) {
		return p.connect()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sqlx.DB), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for database: %w: %v", leadcapture.ErrStoreUnavailable, ctx.Err())
	}
}

// connect runs detached from any single request so that a cancelled caller
// does not fail the attempt shared with others.
func (p *Pool) connect() (*sqlx.DB, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()

	db, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %v", leadcapture.ErrStoreUnavailable, err)
	}

	if p.onConnect != nil {
		if err := p.prepare(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("preparing database: %w: %v", leadcapture.ErrStoreUnavailable, err)
		}
	}

	// Database metrics
	if err := otelsql.RecordStats(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("recording db stats: %w: %v", leadcapture.ErrStoreUnavailable, err)
	}

	p.mu.Lock()
	p.db = db
	p.mu.Unlock()

	return db, nil
}

// prepare runs onConnect on a dedicated handle.
func (p *Pool) prepare(ctx context.Context) error {
	db, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return p.onConnect(ctx, db)
}

func (p *Pool) dialDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := sql.Open(p.driverName, p.cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(p.cfg.MaxIdleConns)
	db.SetMaxOpenConns(p.cfg.MaxOpenConns)

	dbx := sqlx.NewDb(db, "postgres")
	if err := StatusCheck(ctx, dbx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db status check: %w", err)
	}

	return dbx, nil
}

// Check reports whether the database can be reached, connecting if needed.
func (p *Pool) Check(ctx context.Context) error {
	db, err := p.DB(ctx)
	if err != nil {
		return err
	}
	return StatusCheck(ctx, db)
}

// Close releases the connection if one was opened.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// StatusCheck returns nil if it can successfully talk to the database. It
// returns a non-nil error otherwise.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {

	// First check we can ping the database.
	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.PingContext(ctx)
		if pingError == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), pingError)
		}
	}

	// Run a simple query to determine connectivity. Running this query forces a
	// round trip through the database.
	const q = `SELECT true`
	var tmp bool
	return db.QueryRowContext(ctx, q).Scan(&tmp)
}
