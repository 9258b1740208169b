package models

import "time"

// ServerInfo is the GetServerInfo snapshot.
type ServerInfo struct {
	OK           bool      `json:"ok"`
	ServerID     string    `json:"server_id"`
	Version      string    `json:"version"`
	DashboardURL string    `json:"dashboard_url,omitempty"`
	StartedAt    time.Time `json:"started_at"`

	Agents     int `json:"agents"`
	QueuedJobs int `json:"queued_jobs"`
	Goroutines int `json:"goroutines"`

	CPUPercent float64 `json:"cpu_percent"`
	MemRSS     uint64  `json:"mem_rss"`
	MemPercent float32 `json:"mem_percent"`
}
