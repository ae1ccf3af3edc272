package models

import (
	"time"
)

// Message direction values. Incoming messages are authored by the end user,
// outgoing messages are authored by the relay.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message represents one chat turn. Rows are append-only: the log never
// updates or deletes a message once written.
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Direction string    `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `json:"user_id" gorm:"index"`
}

// ChatRequest is the request structure for sending a chat message
type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatQueuedResponse acknowledges an accepted message. The relay reply is
// delivered later through the pending endpoints.
type ChatQueuedResponse struct {
	User           Message `json:"user"`
	PendingReplyID string  `json:"pending_reply_id"`
}

// HistoryResponse wraps the chronological message history
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// CallbackRequest is the payload the automation webhook posts back when it
// resolves a reply out of band. The original user message id identifies the
// exchange.
type CallbackRequest struct {
	MessageID uint   `json:"message_id" binding:"required"`
	Reply     string `json:"reply" binding:"required"`
	Author    string `json:"author"`
}
