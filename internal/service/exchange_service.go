package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/internal/pending"
	"chat-relay-demo/backend/internal/relay"
	"chat-relay-demo/backend/pkg/logger"
	"chat-relay-demo/backend/pkg/observability"
)

// ErrEmptyContent rejects messages that are empty after trimming whitespace.
var ErrEmptyContent = errors.New("message content must not be empty")

// MessageLog is the slice of MessageService the coordinator needs. Tests
// substitute an in-memory implementation.
type MessageLog interface {
	Append(userID uint, author, content, direction string) (models.Message, error)
}

// RelayInvoker is the slice of the relay client the coordinator needs.
type RelayInvoker interface {
	Invoke(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// SendResult acknowledges an accepted message before the relay answers.
type SendResult struct {
	UserMessage    models.Message
	PendingReplyID string
}

// ExchangeService coordinates one chat turn: persist the user message, open
// the pending slot, call the relay in the background, and resolve the slot
// with the reply. All slot transitions go through the tracker.
type ExchangeService struct {
	tracker      *pending.Tracker
	messageLog   MessageLog
	relay        RelayInvoker
	metrics      *observability.ExchangeMetrics
	botAuthor    string
	relayTimeout time.Duration
	log          *logger.Logger
}

// NewExchangeService creates the exchange coordinator.
func NewExchangeService(
	tracker *pending.Tracker,
	messageLog MessageLog,
	relayClient RelayInvoker,
	metrics *observability.ExchangeMetrics,
	botAuthor string,
	relayTimeout time.Duration,
	log *logger.Logger,
) *ExchangeService {
	if botAuthor == "" {
		botAuthor = "n8n"
	}
	if relayTimeout <= 0 {
		relayTimeout = 15 * time.Second
	}
	return &ExchangeService{
		tracker:      tracker,
		messageLog:   messageLog,
		relay:        relayClient,
		metrics:      metrics,
		botAuthor:    botAuthor,
		relayTimeout: relayTimeout,
		log:          log,
	}
}

// SendMessage validates and persists the user's message, opens the pending
// slot, and kicks off relay resolution in the background. When a live slot
// already exists the message is rejected without being written.
func (s *ExchangeService) SendMessage(user *models.User, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	author := user.FullName
	if author == "" {
		author = user.Email
	}

	ex, err := s.tracker.Admit(user.ID, func() (models.Message, error) {
		return s.messageLog.Append(user.ID, author, content, models.DirectionIncoming)
	})
	if err != nil {
		if errors.Is(err, pending.ErrAlreadyPending) {
			s.metrics.RecordConflict(context.Background())
		}
		return nil, err
	}
	s.metrics.RecordAdmitted(context.Background())

	go s.resolve(ex, content)

	return &SendResult{
		UserMessage:    ex.UserMessage,
		PendingReplyID: ex.ID,
	}, nil
}

// resolve runs detached from the request that admitted the exchange, so a
// client that disconnects or times out does not cancel the relay call.
func (s *ExchangeService) resolve(ex *pending.Exchange, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.relayTimeout)
	defer cancel()

	payload := map[string]any{
		"content":          content,
		"user_id":          ex.UserID,
		"message_id":       ex.UserMessage.ID,
		"pending_reply_id": ex.ID,
	}

	start := time.Now()
	doc, err := s.relay.Invoke(ctx, payload)
	s.metrics.RecordRelayDuration(context.Background(), time.Since(start), err == nil)

	if err != nil {
		s.log.Error("Relay call failed",
			"pending_reply_id", ex.ID,
			"user_id", ex.UserID,
			"error", err.Error(),
		)
		s.failExchange(ex.ID, "relay")
		return
	}

	reply := relay.ExtractReply(doc)
	if _, err := s.completeWith(ex.ID, ex.UserID, reply, s.botAuthor); err != nil {
		if errors.Is(err, pending.ErrInvalidTransition) || errors.Is(err, pending.ErrNotFound) {
			// The slot was failed or evicted while the relay was in flight;
			// the late reply is dropped without touching the log.
			s.log.Info("Discarding late relay reply",
				"pending_reply_id", ex.ID,
				"user_id", ex.UserID,
			)
			return
		}
		s.log.Error("Failed to record relay reply",
			"pending_reply_id", ex.ID,
			"user_id", ex.UserID,
			"error", err.Error(),
		)
		s.failExchange(ex.ID, "store")
	}
}

// completeWith flips the slot to completed and appends the outgoing message
// as one atomic step. If the append fails the slot stays pending and the
// caller decides what to do with it.
func (s *ExchangeService) completeWith(id string, userID uint, reply, author string) (*pending.Exchange, error) {
	ex, err := s.tracker.Complete(id, func() (models.Message, error) {
		return s.messageLog.Append(userID, author, reply, models.DirectionOutgoing)
	})
	if err != nil {
		return ex, err
	}
	s.metrics.RecordCompleted(context.Background())
	return ex, nil
}

// GetPending returns the caller's current exchange regardless of status.
func (s *ExchangeService) GetPending(userID uint) (*pending.Exchange, error) {
	return s.tracker.Get(userID)
}

// GetPendingStatus returns the exchange for a polling handle owned by the
// caller.
func (s *ExchangeService) GetPendingStatus(id string, userID uint) (*pending.Exchange, error) {
	return s.tracker.GetByID(id, userID)
}

// FailPending marks the caller's exchange failed after a client-declared
// timeout. Failing an already resolved exchange is not an error; the current
// state comes back so the client can pick up a reply that raced in.
func (s *ExchangeService) FailPending(id string, userID uint) (*pending.Exchange, error) {
	before, err := s.tracker.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	after, err := s.tracker.Fail(id)
	if err != nil {
		return nil, err
	}
	if before.Status == pending.StatusPending && after.Status == pending.StatusFailed {
		s.metrics.RecordFailed(context.Background(), "client_timeout")
	}
	return after, nil
}

// ClearPending removes the caller's exchange once it is terminal.
func (s *ExchangeService) ClearPending(userID uint) {
	s.tracker.Clear(userID)
}

// CompleteFromCallback resolves an exchange from the out-of-band webhook
// callback, identified by the original user message id.
func (s *ExchangeService) CompleteFromCallback(messageID uint, reply, author string) (*pending.Exchange, error) {
	ex, err := s.tracker.GetByMessageID(messageID)
	if err != nil {
		return nil, err
	}
	if author == "" {
		author = s.botAuthor
	}
	return s.completeWith(ex.ID, ex.UserID, reply, author)
}

func (s *ExchangeService) failExchange(id, cause string) {
	if _, err := s.tracker.Fail(id); err != nil {
		s.log.Error("Failed to mark exchange failed", "pending_reply_id", id, "error", err.Error())
		return
	}
	s.metrics.RecordFailed(context.Background(), cause)
}
