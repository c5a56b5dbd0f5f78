package db

const (
	InsertJob = `
		INSERT INTO print_jobs (id, client_id, printer_id, payload_ref, options, context, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
	`

	GetJobByID = `
		SELECT id, client_id, printer_id, payload_ref, options, context, status, error_message, created_at
		FROM print_jobs WHERE id = ?
	`

	GetOldestPendingJob = `
		SELECT id, client_id, printer_id, payload_ref, options, context, status, error_message, created_at
		FROM print_jobs
		WHERE client_id = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	GetOldestPendingJobID = `
		SELECT id FROM print_jobs
		WHERE client_id = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	MarkJobProcessing = `
		UPDATE print_jobs SET status = 'processing' WHERE id = ? AND status = 'pending'
	`

	UpdateJobStatus = `
		UPDATE print_jobs SET status = ?, error_message = ? WHERE id = ?
	`

	ListJobs = `
		SELECT id, client_id, printer_id, payload_ref, options, context, status, error_message, created_at
		FROM print_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM print_jobs GROUP BY status
	`

	GetJobsOlderThan = `
		SELECT id, client_id, printer_id, payload_ref, options, context, status, error_message, created_at
		FROM print_jobs
		WHERE created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	CountJobsByPayloadRef = `
		SELECT COUNT(*) FROM print_jobs WHERE payload_ref = ?
	`

	DeleteJob = `DELETE FROM print_jobs WHERE id = ?`
)

const (
	GetSetting = `SELECT key, value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`
)
