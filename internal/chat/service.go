package chat

import (
	"context"
	"fmt"

	"github.com/RichardoC/simple-chatbot/internal/models"
	"github.com/RichardoC/simple-chatbot/internal/store"
	"go.uber.org/zap"
)

// Completer produces the next assistant message for a conversation log.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

type Service struct {
	store     *store.Store
	completer Completer
	logger    *zap.Logger
}

func NewService(s *store.Store, completer Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     s,
		completer: completer,
		logger:    logger,
	}
}

// Turn appends the inbound message, asks the completer for a reply and
// appends that too. Turns on the same conversation run one at a time; the
// store itself is never locked while the completer runs.
//
// If the completer fails the user message stays in the log and the error is
// returned unchanged.
func (s *Service) Turn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	conv := s.store.GetOrCreate(req.ConversationID)
	if err := conv.Lock(ctx); err != nil {
		return nil, fmt.Errorf("waiting for conversation %q: %w", req.ConversationID, err)
	}
	defer conv.Unlock()

	s.store.AppendMessage(conv, role, req.Message)

	reply, err := s.completer.Complete(ctx, conv.Messages())
	if err != nil {
		s.logger.Warn("Completion failed",
			zap.String("conversationID", req.ConversationID),
			zap.Int("messages", conv.Len()),
			zap.Error(err))
		return nil, err
	}

	s.store.AppendMessage(conv, models.RoleAssistant, reply)

	s.logger.Debug("Turn completed",
		zap.String("conversationID", req.ConversationID),
		zap.Int("messages", conv.Len()))

	return &models.TurnResponse{
		ConversationID: req.ConversationID,
		Response:       reply,
	}, nil
}

// History returns a snapshot of a conversation's log, or false if the id has
// never been used.
func (s *Service) History(id string) ([]models.Message, bool) {
	conv, ok := s.store.Get(id)
	if !ok {
		return nil, false
	}
	return conv.Messages(), true
}
