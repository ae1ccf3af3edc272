package pending

import (
	"errors"
	"sync"
	"time"

	"chat-relay-demo/backend/internal/models"

	"github.com/google/uuid"
)

// Status of a pending exchange
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrAlreadyPending    = errors.New("a reply is already pending for this user")
	ErrNotFound          = errors.New("pending reply not found")
	ErrInvalidTransition = errors.New("pending reply is already resolved")
)

// Exchange is the live state for one outstanding relay round-trip. At most
// one exchange exists per user at any time; its ID is the polling handle
// handed to the client.
type Exchange struct {
	ID          string          `json:"id"`
	UserID      uint            `json:"user_id"`
	UserMessage models.Message  `json:"user"`
	Status      Status          `json:"status"`
	BotMessage  *models.Message `json:"bot,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (e *Exchange) terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

// Tracker owns the per-user slot table. All mutation goes through its API
// under a single mutex, which makes Admit/Complete/Fail/Clear atomic with
// respect to each other.
type Tracker struct {
	mu         sync.Mutex
	byUser     map[uint]*Exchange
	byID       map[string]*Exchange
	staleAfter time.Duration
	now        func() time.Time
}

// NewTracker creates a tracker. A pending slot older than staleAfter is
// treated as abandoned and evicted on the next admission attempt; zero
// disables eviction.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{
		byUser:     make(map[uint]*Exchange),
		byID:       make(map[string]*Exchange),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Admit opens a new exchange for the user. It fails with ErrAlreadyPending
// when a live pending slot exists; terminal and stale slots are evicted so
// the conversation can never wedge permanently. The user message is produced
// by the commit callback under the tracker lock: when admission is rejected
// the callback never runs, so a conflicting send leaves no orphan row in the
// message log.
func (t *Tracker) Admit(userID uint, commit func() (models.Message, error)) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byUser[userID]; ok {
		if existing.Status == StatusPending && !t.stale(existing) {
			return nil, ErrAlreadyPending
		}
		t.evict(existing)
	}

	userMessage, err := commit()
	if err != nil {
		return nil, err
	}

	ex := &Exchange{
		ID:          uuid.New().String(),
		UserID:      userID,
		UserMessage: userMessage,
		Status:      StatusPending,
		CreatedAt:   t.now(),
	}
	t.byUser[userID] = ex
	t.byID[ex.ID] = ex

	return snapshot(ex), nil
}

// Get returns the user's current slot regardless of status.
func (t *Tracker) Get(userID uint) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(ex), nil
}

// GetByID looks up a slot by its polling handle. A handle owned by another
// user is reported as not found rather than forbidden, so the response does
// not leak whether the id exists.
func (t *Tracker) GetByID(id string, userID uint) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.byID[id]
	if !ok || ex.UserID != userID {
		return nil, ErrNotFound
	}
	return snapshot(ex), nil
}

// GetByMessageID finds the slot holding the given user message. Used by the
// webhook callback, which identifies the exchange by the original message.
func (t *Tracker) GetByMessageID(messageID uint) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ex := range t.byID {
		if ex.UserMessage.ID == messageID {
			return snapshot(ex), nil
		}
	}
	return nil, ErrNotFound
}

// Complete transitions pending -> completed. The bot message is produced by
// the commit callback while the tracker lock is held, so a concurrent Fail
// can never land between the message write and the status flip: either the
// slot is still pending and the write+transition happen as a unit, or the
// commit never runs and the late reply is discarded.
func (t *Tracker) Complete(id string, commit func() (models.Message, error)) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ex.Status != StatusPending {
		return snapshot(ex), ErrInvalidTransition
	}

	bot, err := commit()
	if err != nil {
		return snapshot(ex), err
	}

	ex.BotMessage = &bot
	ex.Status = StatusCompleted
	return snapshot(ex), nil
}

// Fail transitions pending -> failed. Calling it on an already resolved
// slot is a no-op that returns the current state: the relay completing and
// a client-declared timeout may race, and both must converge without error.
func (t *Tracker) Fail(id string) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ex.terminal() {
		return snapshot(ex), nil
	}

	ex.Status = StatusFailed
	return snapshot(ex), nil
}

// Clear removes the user's slot once terminal, allowing the next Admit.
// Pending slots are left alone.
func (t *Tracker) Clear(userID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ex, ok := t.byUser[userID]
	if !ok || !ex.terminal() {
		return
	}
	t.evict(ex)
}

func (t *Tracker) stale(ex *Exchange) bool {
	if t.staleAfter <= 0 {
		return false
	}
	return t.now().Sub(ex.CreatedAt) > t.staleAfter
}

// evict must be called with the lock held.
func (t *Tracker) evict(ex *Exchange) {
	delete(t.byUser, ex.UserID)
	delete(t.byID, ex.ID)
}

func snapshot(ex *Exchange) *Exchange {
	cp := *ex
	if ex.BotMessage != nil {
		bot := *ex.BotMessage
		cp.BotMessage = &bot
	}
	return &cp
}
