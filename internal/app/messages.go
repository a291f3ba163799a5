package app

import (
	"fmt"
	"strings"
	"time"

	"cinechat/pkg/domain"
	"cinechat/pkg/store"
)

// PlaceholderAgentID is the author value written on AI messages recorded
// before the reserved agent identity exists. RepairAgentAuthors rewrites
// these rows once the identity is resolved.
const PlaceholderAgentID int64 = 0

// Messages is the append-only ordered message log per room.
type Messages struct {
	store store.Store
}

// NewMessages constructs the message log on the given store.
func NewMessages(s store.Store) *Messages {
	return &Messages{store: s}
}

// Append records a message in a room. The room must exist and be active.
func (s *Messages) Append(authorID, roomID int64, content string, kind domain.MessageKind) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, domain.ValidationErrors{{Field: "content", Message: "Message content is required"}}
	}
	room, ok, err := s.store.GetRoom(roomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("lookup room: %w", err)
	}
	if !ok || !room.IsActive {
		return domain.Message{}, ErrRoomNotFound
	}
	msg, err := s.store.AppendMessage(domain.Message{
		Content:   content,
		Kind:      kind,
		AuthorID:  authorID,
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns a room's messages oldest-first, annotated with author
// display names.
func (s *Messages) History(roomID int64) ([]domain.Message, error) {
	if _, ok, err := s.store.GetRoom(roomID); err != nil {
		return nil, fmt.Errorf("lookup room: %w", err)
	} else if !ok {
		return nil, ErrRoomNotFound
	}
	msgs, err := s.store.ListMessages(roomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// RepairAgentAuthors rewrites placeholder-authored AI messages to the
// resolved agent ID and reports how many rows changed.
func (s *Messages) RepairAgentAuthors(agentID int64) (int64, error) {
	return s.store.ReassignAuthor(domain.KindAI, PlaceholderAgentID, agentID)
}
