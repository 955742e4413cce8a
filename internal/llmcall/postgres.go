package llmcall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS llm_calls (
	id            TEXT PRIMARY KEY,
	ts            TIMESTAMPTZ NOT NULL,
	latency_ms    INTEGER NOT NULL,
	run_id        TEXT NOT NULL DEFAULT '',
	group_key     TEXT NOT NULL DEFAULT '',
	chunk_index   INTEGER NOT NULL DEFAULT 0,
	prompt_key    TEXT NOT NULL,
	prompt_cid    TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	temperature   DOUBLE PRECISION,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	response      TEXT NOT NULL,
	success       BOOLEAN NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
)`

const selectColumns = `id, ts, latency_ms, run_id, group_key, chunk_index, prompt_key, prompt_cid,
	provider, model, temperature, input_tokens, output_tokens, cost_usd, response, success, error`

// PostgresStore stores calls in a PostgreSQL table through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and makes sure the llm_calls table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create llm_calls table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Insert writes all calls in one transaction.
func (s *PostgresStore) Insert(ctx context.Context, calls []Call) (err error) {
	if len(calls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO llm_calls (`+selectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range calls {
		var temp sql.NullFloat64
		if c.Temperature != nil {
			temp = sql.NullFloat64{Float64: *c.Temperature, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			c.ID, c.Timestamp, c.LatencyMs, c.RunID, c.GroupKey, c.ChunkIndex,
			c.PromptKey, c.PromptCID, c.Provider, c.Model, temp,
			c.InputTokens, c.OutputTokens, c.CostUSD, c.Response, c.Success, c.Error,
		); err != nil {
			return fmt.Errorf("insert call %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Get retrieves a single call by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Call, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM llm_calls WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	calls, err := scanCalls(rows)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// List retrieves calls matching the filter.
func (s *PostgresStore) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanCalls(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// buildListQuery renders filter as a parameterized SELECT.
func buildListQuery(filter QueryFilter) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.RunID != "" {
		add("run_id = $%d", filter.RunID)
	}
	if filter.GroupKey != "" {
		add("group_key = $%d", filter.GroupKey)
	}
	if filter.PromptKey != "" {
		add("prompt_key = $%d", filter.PromptKey)
	}
	if filter.Provider != "" {
		add("provider = $%d", filter.Provider)
	}
	if filter.Model != "" {
		add("model = $%d", filter.Model)
	}
	if filter.Success != nil {
		add("success = $%d", *filter.Success)
	}
	if filter.After != nil {
		add("ts > $%d", *filter.After)
	}
	if filter.Before != nil {
		add("ts < $%d", *filter.Before)
	}

	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + " FROM llm_calls")
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY ts DESC")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", filter.Offset)
	}
	return b.String(), args
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	defer rows.Close()
	var calls []Call
	for rows.Next() {
		var c Call
		var temp sql.NullFloat64
		if err := rows.Scan(
			&c.ID, &c.Timestamp, &c.LatencyMs, &c.RunID, &c.GroupKey, &c.ChunkIndex,
			&c.PromptKey, &c.PromptCID, &c.Provider, &c.Model, &temp,
			&c.InputTokens, &c.OutputTokens, &c.CostUSD, &c.Response, &c.Success, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan llm_calls: %w", err)
		}
		if temp.Valid {
			v := temp.Float64
			c.Temperature = &v
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
