package domain

import (
	"encoding/json"
	"time"
)

// LedgerEventKind names a recorded ledger mutation
type LedgerEventKind string

const (
	EventVoteCast         LedgerEventKind = "vote_cast"
	EventVoteRemoved      LedgerEventKind = "vote_removed"
	EventSlanderSubmitted LedgerEventKind = "slander_submitted"
)

// LedgerEvent is an outbox record of a vote or submission change
type LedgerEvent struct {
	ID        int64           `json:"id"`
	Kind      LedgerEventKind `json:"kind"`
	UserID    string          `json:"user_id"`
	SlanderID int64           `json:"slander_id"`
	Value     int             `json:"value"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SubmissionPayload is the payload of a slander_submitted event
type SubmissionPayload struct {
	Text     string `json:"text"`
	PlayerID int64  `json:"player_id"`
	League   League `json:"league"`
}
