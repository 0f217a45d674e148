package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clueboard/server/internal/clue"
)

// Querier is the subset of pgx calls the clue queries need. Both
// *pgxpool.Pool and *pgxpool.Conn satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Clues provides read-only access to the clues table.
type Clues struct {
	pool *pgxpool.Pool
}

func NewClues(pool *pgxpool.Pool) *Clues {
	return &Clues{pool: pool}
}

// Session acquires a dedicated connection for the lifetime of one request.
// Callers must Release on every exit path.
func (r *Clues) Session(ctx context.Context) (*ClueSession, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &ClueSession{q: conn, release: conn.Release}, nil
}

// ClueSession runs clue queries over a single acquired connection.
type ClueSession struct {
	q       Querier
	release func()
}

// Release returns the connection to the pool. Safe to call more than once.
func (s *ClueSession) Release() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

const clueColumns = `id, round, clue_value, is_daily_double, category, comments, clue_text, correct_answer, air_date, notes`

// CategoryExists reports whether any clue exists for the category in the
// given round.
func (s *ClueSession) CategoryExists(ctx context.Context, category string, round int) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clues WHERE category = $1 AND round = $2)`,
		category, round,
	).Scan(&exists)
	return exists, err
}

// DistinctCategories returns every distinct category that appears in the
// round. Ordered by name so the caller's sampler is the only source of
// randomness.
func (s *ClueSession) DistinctCategories(ctx context.Context, round int) ([]string, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT category FROM clues WHERE round = $1 ORDER BY category`,
		round,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AirDates returns the distinct broadcast dates for a category within a
// round, most recent first.
func (s *ClueSession) AirDates(ctx context.Context, category string, round int) ([]time.Time, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT air_date FROM clues WHERE category = $1 AND round = $2 ORDER BY air_date DESC`,
		category, round,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// BoardClues returns at most one clue per distinct clue_value for the
// (category, round, airDate) triple, ascending by value. When several rows
// share a value the lowest id wins.
func (s *ClueSession) BoardClues(ctx context.Context, category string, round int, airDate time.Time) ([]clue.Clue, error) {
	rows, err := s.q.Query(ctx,
		`SELECT DISTINCT ON (clue_value) `+clueColumns+`
		 FROM clues
		 WHERE category = $1 AND round = $2 AND air_date = $3
		 ORDER BY clue_value ASC, id ASC`,
		category, round, airDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clues []clue.Clue
	for rows.Next() {
		c, err := scanClue(rows)
		if err != nil {
			return nil, err
		}
		clues = append(clues, c)
	}
	return clues, rows.Err()
}

// GetClue fetches a single clue by id.
func (s *ClueSession) GetClue(ctx context.Context, id int64) (clue.Clue, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+clueColumns+` FROM clues WHERE id = $1`, id)
	c, err := scanClue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return clue.Clue{}, clue.ErrClueNotFound
	}
	return c, err
}

func scanClue(row pgx.Row) (clue.Clue, error) {
	var c clue.Clue
	err := row.Scan(
		&c.ID,
		&c.Round,
		&c.Value,
		&c.IsDailyDouble,
		&c.Category,
		&c.Comments,
		&c.ClueText,
		&c.CorrectAnswer,
		&c.AirDate,
		&c.Notes,
	)
	return c, err
}
