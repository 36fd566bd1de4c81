package models

import "time"

// LabelRecord is one generated label archive in the history
type LabelRecord struct {
	ID          int64
	RunID       string
	Hardware    string
	HWID        string
	Path        string
	GeneratedAt time.Time
}

// Run is one invocation that produced label archives
type Run struct {
	ID        string
	Source    string
	Hardware  string
	StartedAt time.Time
}
