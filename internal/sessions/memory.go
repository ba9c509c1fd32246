package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookday/concierge/pkg/models"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	byKey         map[string]string
	messages      map[string][]*models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		byKey:         make(map[string]string),
		messages:      make(map[string][]*models.Message),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, companyID, clientID string) (*models.Conversation, error) {
	key := ConversationKey(companyID, clientID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[key]; ok {
		cp := *s.conversations[id]
		return &cp, nil
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		ClientID:  clientID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	s.byKey[key] = conv.ID

	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.conversations[conv.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *conv
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}

	cp := *msg
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ConversationID = conversationID
	s.messages[conversationID] = append(s.messages[conversationID], &cp)
	conv.UpdatedAt = time.Now()
	return nil
}

// GetHistory returns the most recent messages in chronological order.
// A limit of 0 returns everything.
func (s *MemoryStore) GetHistory(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}

	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}
