package domain

import "time"

type StageKind string

const (
	StageTranscribe StageKind = "transcribe"
	StageExtract    StageKind = "extract"
)

// StageMessage is the transport format for one pipeline stage sent to
// queue backends. Stages run detached from the request that scheduled
// them, so the message carries everything a worker needs.
type StageMessage struct {
	Stage          StageKind `json:"stage"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Attempt        int       `json:"attempt"`
	RequestedAt    time.Time `json:"requested_at"`
}
