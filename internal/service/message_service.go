package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-relay-demo/backend/internal/models"
	"chat-relay-demo/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// MessageService owns the append-only message log. Reads go through an
// optional redis cache; the cache is invalidated on every append and the
// service silently degrades to direct DB reads when redis is unreachable.
type MessageService struct {
	db           *gorm.DB
	cache        *redis.Client
	cacheTTL     time.Duration
	defaultLimit int
	maxLimit     int
	log          *logger.Logger
}

// NewMessageService creates a message service. cache may be nil to disable
// the history cache entirely.
func NewMessageService(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration, defaultLimit, maxLimit int, log *logger.Logger) *MessageService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &MessageService{
		db:           db,
		cache:        cache,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		log:          log,
	}
}

// Append writes one message row and invalidates the user's cached history.
func (s *MessageService) Append(userID uint, author, content, direction string) (models.Message, error) {
	msg := models.Message{
		Author:    author,
		Content:   content,
		Direction: direction,
		UserID:    userID,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return models.Message{}, err
	}

	s.invalidate(userID)
	return msg, nil
}

// List returns the user's most recent messages in chronological order.
// A limit outside [1, maxLimit] is clamped; zero means the default.
func (s *MessageService) List(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	limit = s.clampLimit(limit)

	if cached, ok := s.cacheGet(ctx, userID, limit); ok {
		return cached, nil
	}

	var messages []models.Message
	err := s.db.
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Query newest-first for the LIMIT, present oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	s.cacheSet(ctx, userID, limit, messages)
	return messages, nil
}

func (s *MessageService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func cacheKey(userID uint, limit int) string {
	return fmt.Sprintf("history:%d:%d", userID, limit)
}

func (s *MessageService) cacheGet(ctx context.Context, userID uint, limit int) ([]models.Message, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, cacheKey(userID, limit)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("History cache read failed", "error", err.Error())
		}
		return nil, false
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		s.log.Warn("History cache entry corrupt, dropping", "error", err.Error())
		s.cache.Del(ctx, cacheKey(userID, limit))
		return nil, false
	}
	return messages, true
}

func (s *MessageService) cacheSet(ctx context.Context, userID uint, limit int, messages []models.Message) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(userID, limit), raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn("History cache write failed", "error", err.Error())
	}
}

// invalidate drops every cached page for the user. Pages are keyed by limit,
// so a pattern scan is needed rather than a single DEL.
func (s *MessageService) invalidate(userID uint) {
	if s.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := s.cache.Scan(ctx, 0, fmt.Sprintf("history:%d:*", userID), 0).Iterator()
	for iter.Next(ctx) {
		s.cache.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("History cache invalidation failed", "error", err.Error())
	}
}
