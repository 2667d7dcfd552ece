package store

import (
	"context"
	"sync"

	"github.com/RichardoC/simple-chatbot/internal/models"
)

const SystemPrompt = "You are a helpful AI assistant."

// Conversation is an append-only message log. The first entry is always the
// system message inserted at creation.
type Conversation struct {
	id string

	// turn serializes whole turns (read log, call provider, append reply)
	// on this conversation. It is never held by the Store itself.
	turn chan struct{}

	mu       sync.RWMutex
	messages []models.Message
}

func newConversation(id string) *Conversation {
	return &Conversation{
		id:   id,
		turn: make(chan struct{}, 1),
		messages: []models.Message{
			{Role: models.RoleSystem, Content: SystemPrompt},
		},
	}
}

func (c *Conversation) ID() string {
	return c.id
}

// Messages returns a snapshot of the log in append order.
func (c *Conversation) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Lock acquires the turn lock, giving up when ctx is done.
func (c *Conversation) Lock(ctx context.Context) error {
	select {
	case c.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conversation) Unlock() {
	select {
	case <-c.turn:
	default:
		panic("store: unlock of unlocked conversation")
	}
}

func (c *Conversation) append(msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Store maps conversation IDs to their logs for the lifetime of the process.
// Nothing is ever evicted.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func New() *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreate returns the conversation for id, creating it seeded with the
// system message on first reference.
func (s *Store) GetOrCreate(id string) *Conversation {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have created it between the two locks.
	if conv, ok := s.conversations[id]; ok {
		return conv
	}
	conv = newConversation(id)
	s.conversations[id] = conv
	return conv
}

// Get looks up a conversation without creating it.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

func (s *Store) AppendMessage(conv *Conversation, role, content string) {
	conv.append(models.Message{Role: role, Content: content})
}

// Len reports the number of conversations held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
