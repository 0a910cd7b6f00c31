package storage

import "time"

// EventWriter is the interface for persisting tool call audit events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ToolCallEvent)
	Close()
}

// ToolCallEvent records one dispatched tool call and its outcome.
type ToolCallEvent struct {
	RequestID      string
	Timestamp      time.Time
	Tool           string
	Model          string
	Operation      string // read, write, create, delete; empty for registry tools
	ArgumentsJSON  string
	Status         string // "ok" or "error"
	ErrorKind      string
	ErrorMessage   string
	Records        int32 // records returned or items processed
	EffectiveLimit int32
	Database       string
	UserID         int32
	Transport      string
	LatencyMs      float32
}
