package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// CreateRun records a finished pipeline run.
func (s *Store) CreateRun(ctx context.Context, run *models.Run) error {
	failed := run.FailedSources
	if failed == nil {
		failed = []string{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("encoding failed sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, run_date, started_at, finished_at, items_fetched, articles_ingested,
			 feature_method, clusters, stories_published, failed_sources)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunDate, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.ItemsFetched, run.ArticlesIngested, run.FeatureMethod, run.Clusters,
		run.StoriesPublished, string(failedJSON),
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

const runColumns = `id, run_date, started_at, finished_at, items_fetched, articles_ingested,
		feature_method, clusters, stories_published, failed_sources`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.Run, error) {
	var (
		run                   models.Run
		startedAt, finishedAt string
		failedJSON            string
	)
	if err := row.Scan(
		&run.ID, &run.RunDate, &startedAt, &finishedAt, &run.ItemsFetched,
		&run.ArticlesIngested, &run.FeatureMethod, &run.Clusters,
		&run.StoriesPublished, &failedJSON,
	); err != nil {
		return models.Run{}, err
	}
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	if err := json.Unmarshal([]byte(failedJSON), &run.FailedSources); err != nil {
		return models.Run{}, fmt.Errorf("decoding failed sources for run %s: %w", run.ID, err)
	}
	return run, nil
}

// GetRun returns the run with the given id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return &run, nil
}

// GetRecentRuns returns the most recent runs, newest first.
func (s *Store) GetRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}
