package core

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Destination is a resolved printer locator: the wire protocol, the network
// host, and the normalized local spooler name derived from it.
type Destination struct {
	Protocol string
	Host     string
	Name     string
}
