package db

import (
	"time"
)

type PrintJob struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	PrinterID    string    `json:"printer_id"`
	PayloadRef   string    `json:"payload_ref"`
	Options      string    `json:"options"`
	Context      string    `json:"context,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobFilter struct {
	ClientID string
	Status   string
	Limit    int
	Offset   int
}
