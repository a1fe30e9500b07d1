package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/Konsultn-Engineering/enorm-keys/schema"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// primaryKeyQuery lists the primary key columns of a table in key order.
// The regclass cast fails with undefined_table for unknown tables.
const primaryKeyQuery = `
SELECT a.attname::text
FROM pg_index i
CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
WHERE i.indrelid = format('%I.%I', $1::text, $2::text)::regclass
  AND i.indisprimary
ORDER BY k.ord`

var validate = validator.New()

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Config struct {
	Schema  string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

// DefaultConfig reads from the public schema with a five second timeout.
func DefaultConfig() Config {
	return Config{Schema: "public", Timeout: 5 * time.Second}
}

// Provider resolves primary keys from the PostgreSQL catalog instead of
// struct tags. Table names and the column to field mapping still come from
// the schema context.
type Provider struct {
	q      Querier
	schema *schema.Context
	cfg    Config
	logger *slog.Logger
}

type Option func(*Provider)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

func New(q Querier, schemaCtx *schema.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid postgres provider config: %w", err)
	}

	p := &Provider{q: q, schema: schemaCtx, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p, nil
}

// PrimaryKey returns the primary key of the table backing t, mapped back
// to struct fields by column name.
func (p *Provider) PrimaryKey(t reflect.Type) ([]schema.KeyProperty, error) {
	meta, err := p.schema.Entity(t)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	rows, err := p.q.Query(ctx, primaryKeyQuery, p.cfg.Schema, meta.TableName)
	if err != nil {
		return nil, p.classify(meta, err)
	}
	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, p.classify(meta, err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s", schema.ErrNoPrimaryKey, p.cfg.Schema, meta.TableName)
	}

	keys := make([]schema.KeyProperty, len(columns))
	for i, col := range columns {
		fm, ok := meta.ColumnMap[col]
		if !ok {
			return nil, fmt.Errorf("primary key column %s.%s has no field in %s", meta.TableName, col, meta.Type)
		}
		keys[i] = meta.KeyProperty(fm)
	}

	p.logger.Debug("primary key read from catalog",
		"type", meta.Type.String(),
		"table", meta.TableName,
		"columns", columns)
	return keys, nil
}

func (p *Provider) classify(meta *schema.EntityMeta, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable, pgerrcode.InvalidSchemaName:
			return fmt.Errorf("%w: table %s.%s: %s", schema.ErrEntityNotFound, p.cfg.Schema, meta.TableName, pgErr.Message)
		}
	}
	return fmt.Errorf("query primary key of %s: %w", meta.TableName, err)
}

// Connect opens a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// poolConfig parses dsn and caps the pool at four connections.
func poolConfig(dsn string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolCfg.MaxConns > 4 {
		poolCfg.MaxConns = 4
	}
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	return poolCfg, nil
}
