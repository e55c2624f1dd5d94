// Package datastore provides access to the vault metadata database. It wraps
// a database/sql handle opened through the pgx driver and exposes the small
// query interfaces the stores and the schema inspector are built against.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"

	"gitlab.com/mediavault/vaultdb/log"
)

const (
	driverName = "pgx"

	// maxPingRetries is the number of times a failed connectivity check is
	// retried with exponential backoff before Open gives up.
	maxPingRetries = 4
)

// Queryer is the interface that wraps the basic query operations. It is
// satisfied by *sql.DB and *sql.Tx, allowing stores to run either inside or
// outside a transaction.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Transactor is the interface of an in-flight database transaction.
type Transactor interface {
	Queryer
	Commit() error
	Rollback() error
}

// Handler is the interface of the database handle given to workers and
// stores that need to manage their own transactions.
type Handler interface {
	Queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Transactor, error)
}

// DSN represents the connection parameters of the metadata database.
type DSN struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ConnectTimeout time.Duration
}

// String builds a connection string in keyword/value format, quoting values
// as needed. Zero valued parameters are omitted.
func (dsn *DSN) String() string {
	var params []string

	port := ""
	if dsn.Port > 0 {
		port = strconv.Itoa(dsn.Port)
	}
	timeout := ""
	if dsn.ConnectTimeout > 0 {
		timeout = fmt.Sprintf("%.0f", dsn.ConnectTimeout.Seconds())
	}

	for _, param := range []struct{ k, v string }{
		{"host", dsn.Host},
		{"port", port},
		{"user", dsn.User},
		{"password", dsn.Password},
		{"dbname", dsn.DBName},
		{"sslmode", dsn.SSLMode},
		{"connect_timeout", timeout},
	} {
		if param.v == "" {
			continue
		}
		params = append(params, param.k+"="+quoteParam(param.v))
	}

	return strings.Join(params, " ")
}

// quoteParam quotes a connection string value following the libpq rules:
// backslashes and single quotes are escaped, and values containing spaces
// (or empty values) are wrapped in single quotes.
func quoteParam(v string) string {
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	if strings.Contains(escaped, " ") {
		return "'" + escaped + "'"
	}
	return escaped
}

// DB is a database handle for the metadata database.
type DB struct {
	*sql.DB
	DSN *DSN
}

// BeginTx starts a transaction on the underlying handle.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Transactor, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type openOpts struct {
	logger log.Logger
	pool   PoolConfig
}

// PoolConfig holds the connection pool settings applied on Open.
type PoolConfig struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

// Option is used to pass options to Open.
type Option func(*openOpts)

// WithLogger sets the logger used during Open.
func WithLogger(l log.Logger) Option {
	return func(opts *openOpts) {
		opts.logger = l
	}
}

// WithPoolConfig sets the connection pool configuration.
func WithPoolConfig(c PoolConfig) Option {
	return func(opts *openOpts) {
		opts.pool = c
	}
}

// Open opens a handle for the metadata database and validates connectivity,
// retrying transient failures with exponential backoff.
func Open(dsn *DSN, options ...Option) (*DB, error) {
	opts := openOpts{logger: log.GetLogger()}
	for _, o := range options {
		o(&opts)
	}

	handle, err := sql.Open(driverName, dsn.String())
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	if opts.pool.MaxIdle > 0 {
		handle.SetMaxIdleConns(opts.pool.MaxIdle)
	}
	if opts.pool.MaxOpen > 0 {
		handle.SetMaxOpenConns(opts.pool.MaxOpen)
	}
	if opts.pool.MaxLifetime > 0 {
		handle.SetConnMaxLifetime(opts.pool.MaxLifetime)
	}

	db := &DB{DB: handle, DSN: dsn}

	l := opts.logger.WithFields(log.Fields{"host": dsn.Host, "port": dsn.Port, "dbname": dsn.DBName})

	ping := func() error {
		ctx := context.Background()
		if dsn.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, dsn.ConnectTimeout)
			defer cancel()
		}
		if err := db.PingContext(ctx); err != nil {
			// There is no point in retrying when the target database does
			// not exist.
			if isNotFound(err) {
				return backoff.Permanent(err)
			}
			l.WithError(err).Warn("database connectivity check failed, retrying")
			return err
		}
		return nil
	}

	if err := backoff.Retry(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxPingRetries)); err != nil {
		db.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("database %q does not exist: %w", dsn.DBName, err)
		}
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// isNotFound determines whether an error is due to the target database not
// existing.
func isNotFound(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.InvalidCatalogName
	}
	return false
}
