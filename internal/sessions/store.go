// Package sessions persists conversations and their message history, and
// serializes concurrent turns on the same conversation.
package sessions

import (
	"context"
	"errors"

	"github.com/bookday/concierge/pkg/models"
)

var ErrNotFound = errors.New("sessions: not found")

// Store is the interface for conversation persistence.
type Store interface {
	GetOrCreate(ctx context.Context, companyID, clientID string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Update(ctx context.Context, conv *models.Conversation) error

	AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error
	GetHistory(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}

// ConversationKey builds the lookup key for a company/client pair.
func ConversationKey(companyID, clientID string) string {
	return companyID + ":" + clientID
}
