package db

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/observability"
)

// Options sizes and instruments the pool. Zero values keep whatever the URL
// or pgx defaults say.
type Options struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	Tracing        bool
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       int32(cfg.DBMaxConns),
		MinConns:       int32(cfg.DBMinConns),
		ConnectTimeout: time.Duration(cfg.DBConnectTimeout) * time.Second,
		Tracing:        cfg.OtelEnabled,
	}
}

// Prisma connection strings carry pool hints in the query; pgx would send
// them to the server as runtime parameters.
var prismaQueryKeys = []string{
	"schema",
	"connection_limit",
	"pool_timeout",
	"pgbouncer",
	"socket_timeout",
	"statement_cache_size",
}

type urlPoolHints struct {
	maxConns    int32
	poolTimeout time.Duration
}

func Connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(opts)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// PoolConfig resolves opts into a pgxpool config without connecting.
func PoolConfig(opts Options) (*pgxpool.Config, error) {
	normalized, hints := normalizeDatabaseURL(opts.URL)
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if hints.maxConns > 0 {
		cfg.MaxConns = hints.maxConns
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = hints.poolTimeout
	}
	if timeout > 0 {
		cfg.ConnConfig.ConnectTimeout = timeout
	}

	if opts.Tracing {
		cfg.ConnConfig.Tracer = queryTracer{tracer: otel.Tracer(observability.TracerName)}
	}
	return cfg, nil
}

func normalizeDatabaseURL(rawURL string) (string, urlPoolHints) {
	var hints urlPoolHints
	normalized := strings.TrimSpace(rawURL)
	if strings.HasPrefix(normalized, "postgresql://") {
		normalized = strings.Replace(normalized, "postgresql://", "postgres://", 1)
	}

	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Scheme != "postgres" {
		return normalized, hints
	}

	query := parsed.Query()
	if n, err := strconv.Atoi(query.Get("connection_limit")); err == nil && n > 0 {
		hints.maxConns = int32(n)
	}
	if n, err := strconv.Atoi(query.Get("pool_timeout")); err == nil && n > 0 {
		hints.poolTimeout = time.Duration(n) * time.Second
	}
	for _, key := range prismaQueryKeys {
		query.Del(key)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), hints
}

// queryTracer opens one client span per statement.
type queryTracer struct {
	tracer trace.Tracer
}

func (q queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, _ = q.tracer.Start(ctx, "db.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", data.SQL),
		),
	)
	return ctx
}

func (q queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()
}
