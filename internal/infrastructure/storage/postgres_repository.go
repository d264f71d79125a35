package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

// Schema creates the tables used by PostgresRepository.
const Schema = `
CREATE TABLE IF NOT EXISTS digest_runs (
    run_id               TEXT PRIMARY KEY,
    started_at           TIMESTAMPTZ NOT NULL,
    finished_at          TIMESTAMPTZ NOT NULL,
    outcome              TEXT NOT NULL,
    failed_in            TEXT NOT NULL DEFAULT '',
    reason               TEXT NOT NULL DEFAULT '',
    sources_attempted    INTEGER NOT NULL,
    sources_succeeded    INTEGER NOT NULL,
    posts_included       INTEGER NOT NULL,
    is_fallback          BOOLEAN NOT NULL,
    recipients_delivered INTEGER NOT NULL,
    recipients_failed    INTEGER NOT NULL,
    artifact_path        TEXT NOT NULL DEFAULT '',
    dry_run              BOOLEAN NOT NULL DEFAULT FALSE
);
ALTER TABLE digest_runs ADD COLUMN IF NOT EXISTS dry_run BOOLEAN NOT NULL DEFAULT FALSE;
CREATE INDEX IF NOT EXISTS digest_runs_outcome_started_idx ON digest_runs (outcome, started_at DESC);

CREATE TABLE IF NOT EXISTS cached_posts (
    link         TEXT PRIMARY KEY,
    source_name  TEXT NOT NULL,
    title        TEXT NOT NULL,
    published_at TIMESTAMPTZ,
    summary_raw  TEXT,
    seen_at      TIMESTAMPTZ NOT NULL
);`

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists run history and the post cache into Postgres.
type PostgresRepository struct {
	db  DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.StateStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a pgx pool implementation.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

// Migrate creates the schema if it is missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// LastSuccessfulRun returns the start of the latest delivered or partial run.
// Dry runs never sent anything and are skipped.
func (r *PostgresRepository) LastSuccessfulRun(ctx context.Context) (time.Time, bool, error) {
	query, args, err := r.sb.
		Select("started_at").
		From("digest_runs").
		Where(sq.Eq{"outcome": []string{string(domain.OutcomeDelivered), string(domain.OutcomePartial)}}).
		Where(sq.Eq{"dry_run": false}).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build last run query: %w", err)
	}

	var startedAt time.Time
	if err := r.db.QueryRow(ctx, query, args...).Scan(&startedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query last run: %w", err)
	}
	return startedAt, true, nil
}

// RecordRun stores the final report of a run.
func (r *PostgresRepository) RecordRun(ctx context.Context, report domain.RunReport) error {
	query, args, err := r.sb.
		Insert("digest_runs").
		Columns(
			"run_id", "started_at", "finished_at", "outcome", "failed_in", "reason",
			"sources_attempted", "sources_succeeded", "posts_included", "is_fallback",
			"recipients_delivered", "recipients_failed", "artifact_path", "dry_run",
		).
		Values(
			report.RunID, report.StartedAt, report.FinishedAt, string(report.Outcome), string(report.FailedIn), report.Reason,
			report.SourcesAttempted, report.SourcesSucceeded, report.PostsIncluded, report.IsFallback,
			report.RecipientsDelivered, report.RecipientsFailed, report.ArtifactPath, report.DryRun,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert run: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RememberPosts upserts fetched posts into the last-known-good cache.
func (r *PostgresRepository) RememberPosts(ctx context.Context, posts []domain.Post) error {
	posts = lo.UniqBy(posts, func(p domain.Post) string { return p.Link })
	if len(posts) == 0 {
		return nil
	}

	seenAt := r.now()
	insert := r.sb.
		Insert("cached_posts").
		Columns("link", "source_name", "title", "published_at", "summary_raw", "seen_at")
	for _, p := range posts {
		insert = insert.Values(p.Link, p.SourceName, p.Title, p.PublishedAt, p.SummaryRaw, seenAt)
	}
	query, args, err := insert.
		Suffix(`ON CONFLICT (link) DO UPDATE
              SET source_name = EXCLUDED.source_name,
                  title = EXCLUDED.title,
                  published_at = EXCLUDED.published_at,
                  summary_raw = EXCLUDED.summary_raw,
                  seen_at = EXCLUDED.seen_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert posts: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert posts: %w", err)
	}
	return nil
}

// RecentPosts returns up to limit cached posts, newest first.
func (r *PostgresRepository) RecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := r.sb.
		Select("link", "source_name", "title", "published_at", "summary_raw").
		From("cached_posts").
		OrderBy("published_at DESC NULLS LAST", "seen_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent posts query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.Link, &p.SourceName, &p.Title, &p.PublishedAt, &p.SummaryRaw); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return posts, nil
}
