package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	Jobs     = &JobOperations{}
	Settings = &SettingsOperations{}
)

type JobOperations struct{}

// CreateJob inserts a new pending job. The id is assigned here and is the
// only way a new job id comes into existence.
func (o *JobOperations) CreateJob(ctx context.Context, j *PrintJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := GetDB().ExecContext(ctx, InsertJob,
		j.ID, j.ClientID, j.PrinterID, j.PayloadRef, j.Options, j.Context, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	j.Status = "pending"
	return nil
}

// GetJob returns nil without error when no job exists for the id.
func (o *JobOperations) GetJob(ctx context.Context, id string) (*PrintJob, error) {
	j := &PrintJob{}
	err := GetDB().QueryRowContext(ctx, GetJobByID, id).Scan(
		&j.ID, &j.ClientID, &j.PrinterID, &j.PayloadRef, &j.Options,
		&j.Context, &j.Status, &j.ErrorMessage, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// OldestPending returns the next job in line for a client, ordered by
// creation time with the id as tie-break, or nil when nothing is pending.
func (o *JobOperations) OldestPending(ctx context.Context, clientID string) (*PrintJob, error) {
	j := &PrintJob{}
	err := GetDB().QueryRowContext(ctx, GetOldestPendingJob, clientID).Scan(
		&j.ID, &j.ClientID, &j.PrinterID, &j.PayloadRef, &j.Options,
		&j.Context, &j.Status, &j.ErrorMessage, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oldest pending job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) OldestPendingID(ctx context.Context, clientID string) (string, error) {
	var id string
	err := GetDB().QueryRowContext(ctx, GetOldestPendingJobID, clientID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get oldest pending job id: %w", err)
	}
	return id, nil
}

// UpdateJobStatus is an unconditional write; callers own transition legality.
func (o *JobOperations) UpdateJobStatus(ctx context.Context, id, status, errMsg string) error {
	_, err := GetDB().ExecContext(ctx, UpdateJobStatus, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// ClaimJob atomically moves a pending job to processing. It returns nil when
// the job does not exist or was not pending, so concurrent claimers can race
// safely: at most one caller gets the job back.
func (o *JobOperations) ClaimJob(ctx context.Context, id string) (*PrintJob, error) {
	tx, err := GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, MarkJobProcessing, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	j := &PrintJob{}
	err = tx.QueryRowContext(ctx, GetJobByID, id).Scan(
		&j.ID, &j.ClientID, &j.PrinterID, &j.PayloadRef, &j.Options,
		&j.Context, &j.Status, &j.ErrorMessage, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return j, nil
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*PrintJob, error) {
	query := `
		SELECT id, client_id, printer_id, payload_ref, options, context, status, error_message, created_at
		FROM print_jobs
	`
	var conds []string
	var args []interface{}
	if filter.ClientID != "" {
		conds = append(conds, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		j := &PrintJob{}
		if err := rows.Scan(
			&j.ID, &j.ClientID, &j.PrinterID, &j.PayloadRef, &j.Options,
			&j.Context, &j.Status, &j.ErrorMessage, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := GetDB().QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (o *JobOperations) JobsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, GetJobsOlderThan, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query aged jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		j := &PrintJob{}
		if err := rows.Scan(
			&j.ID, &j.ClientID, &j.PrinterID, &j.PayloadRef, &j.Options,
			&j.Context, &j.Status, &j.ErrorMessage, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aged job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (o *JobOperations) CountByPayloadRef(ctx context.Context, payloadRef string) (int, error) {
	var count int
	err := GetDB().QueryRowContext(ctx, CountJobsByPayloadRef, payloadRef).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payload references: %w", err)
	}
	return count, nil
}

func (o *JobOperations) DeleteJob(ctx context.Context, id string) error {
	_, err := GetDB().ExecContext(ctx, DeleteJob, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type SettingsOperations struct{}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{}
	err := GetDB().QueryRowContext(ctx, GetSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string) error {
	_, err := GetDB().ExecContext(ctx, SetSetting, key, value, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
