// Package results records completed games for analytics.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Game modes that report a score.
const (
	ModeQuiz     = "quiz"
	ModeSpelling = "spelling"
)

// ErrInvalidResult is returned for results missing required fields.
var ErrInvalidResult = errors.New("invalid game result")

// GameResult is one finished quiz or spelling game.
type GameResult struct {
	SessionID string    `json:"sessionId"`
	Subject   string    `json:"subject"`
	UnitID    string    `json:"unitId"`
	Mode      string    `json:"mode"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// Perfect reports whether every item was answered correctly.
func (r GameResult) Perfect() bool {
	return r.Total > 0 && r.Score >= r.Total
}

func (r GameResult) validate() error {
	switch {
	case r.SessionID == "":
		return fmt.Errorf("%w: session_id is required", ErrInvalidResult)
	case r.Mode != ModeQuiz && r.Mode != ModeSpelling:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidResult, r.Mode)
	case r.Total < 0 || r.Score < 0:
		return fmt.Errorf("%w: negative score", ErrInvalidResult)
	}
	return nil
}

// Logger persists game results.
type Logger interface {
	LogResult(ctx context.Context, r GameResult) error
	Recent(ctx context.Context, sessionID string, limit int) ([]GameResult, error)
}

// NopLogger ignores all results.
type NopLogger struct{}

func (NopLogger) LogResult(context.Context, GameResult) error { return nil }

func (NopLogger) Recent(context.Context, string, int) ([]GameResult, error) { return nil, nil }

// MemoryLogger keeps results in memory.
type MemoryLogger struct {
	mu      sync.Mutex
	results []GameResult
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{results: []GameResult{}}
}

func (l *MemoryLogger) LogResult(_ context.Context, r GameResult) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
	return nil
}

// Recent returns the newest results of a session first.
func (l *MemoryLogger) Recent(_ context.Context, sessionID string, limit int) ([]GameResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []GameResult
	for _, r := range l.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Results returns every logged result in insertion order.
func (l *MemoryLogger) Results() []GameResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]GameResult{}, l.results...)
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS game_results (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID        NOT NULL,
	subject    TEXT        NOT NULL,
	unit_id    TEXT        NOT NULL,
	mode       TEXT        NOT NULL,
	score      INTEGER     NOT NULL,
	total      INTEGER     NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS game_results_session_idx ON game_results (session_id, created_at DESC);`

// PostgresLogger inserts results into the game_results table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

// EnsureSchema creates the game_results table when missing.
func (l *PostgresLogger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("results logger pool is nil")
	}
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create game_results: %w", err)
	}
	return nil
}

func (l *PostgresLogger) LogResult(ctx context.Context, r GameResult) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("results logger pool is nil")
	}
	if err := r.validate(); err != nil {
		return err
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO game_results (session_id, subject, unit_id, mode, score, total, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
		r.SessionID, r.Subject, r.UnitID, r.Mode, r.Score, r.Total, createdAt,
	); err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}

	slog.Debug("game result logged",
		"session_id", r.SessionID,
		"mode", r.Mode,
		"score", r.Score,
		"total", r.Total,
	)
	return nil
}

func (l *PostgresLogger) Recent(ctx context.Context, sessionID string, limit int) ([]GameResult, error) {
	if l == nil || l.pool == nil {
		return nil, fmt.Errorf("results logger pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT session_id::text, subject, unit_id, mode, score, total, created_at
		 FROM game_results
		 WHERE session_id = $1::uuid
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query game results: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[GameResult])
	if err != nil {
		return nil, fmt.Errorf("scan game results: %w", err)
	}
	return out, nil
}
