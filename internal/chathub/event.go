package chathub

import "time"

// Event is one committed row change, as published by the database trigger.
type Event struct {
	Table        string `json:"table"`
	Op           string `json:"op"`
	SessionID    string `json:"session_id"`
	RequesterKey string `json:"requester_key"`
	Status       string `json:"status"`
	RowID        string `json:"row_id"`
}

// FrameRefresh tells a client to re-fetch the listed sessions.
const FrameRefresh = "refresh"

// Frame is what the hub writes to a client.
type Frame struct {
	Type       string    `json:"type"`
	SessionIDs []string  `json:"session_ids"`
	SentAt     time.Time `json:"sent_at"`
}
