package app

import (
	"errors"
	"testing"
	"time"

	"cinechat/pkg/domain"
	"cinechat/pkg/store"
)

func newChatFixture(t *testing.T) (*Users, *Rooms, *Messages, domain.User, domain.Room) {
	t.Helper()
	ms := store.NewMemoryStore()
	users := NewUsers(ms)
	rooms := NewRooms(ms)
	messages := NewMessages(ms)

	user, err := users.EnsureUser("john_doe", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	room, err := rooms.Create(user.ID, "sci-fi night", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return users, rooms, messages, user, room
}

func TestHistoryOrderingWithTieBreak(t *testing.T) {
	ms := store.NewMemoryStore()
	users := NewUsers(ms)
	rooms := NewRooms(ms)
	messages := NewMessages(ms)

	user, err := users.EnsureUser("john_doe", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	room, err := rooms.Create(user.ID, "sci-fi night", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	// Same timestamp on every row forces the insertion-order tie-break.
	now := time.Now().UTC().Truncate(time.Second)
	for _, content := range []string{"first", "second", "third"} {
		if _, err := ms.AppendMessage(domain.Message{
			Content:   content,
			Kind:      domain.KindHuman,
			AuthorID:  user.ID,
			RoomID:    room.ID,
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := messages.History(room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	want := []string{"first", "second", "third"}
	for i, msg := range history {
		if msg.Content != want[i] {
			t.Fatalf("history[%d] = %q, want %q", i, msg.Content, want[i])
		}
		if i > 0 && history[i].ID <= history[i-1].ID {
			t.Fatalf("IDs not monotonic: %d after %d", history[i].ID, history[i-1].ID)
		}
	}
}

func TestHistoryAnnotatesAuthorNames(t *testing.T) {
	_, _, messages, user, room := newChatFixture(t)

	if _, err := messages.Append(user.ID, room.ID, "recommend a thriller", domain.KindHuman); err != nil {
		t.Fatalf("append: %v", err)
	}
	history, err := messages.History(room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[0].AuthorName != "john_doe" {
		t.Fatalf("author name = %q, want %q", history[0].AuthorName, "john_doe")
	}
}

func TestAppendRejectsUnknownRoom(t *testing.T) {
	_, _, messages, user, _ := newChatFixture(t)

	if _, err := messages.Append(user.ID, 999, "hello", domain.KindHuman); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	_, _, messages, user, room := newChatFixture(t)

	_, err := messages.Append(user.ID, room.ID, "   ", domain.KindHuman)
	var verr domain.ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}

func TestRepairAgentAuthorsRewritesPlaceholders(t *testing.T) {
	users, _, messages, user, room := newChatFixture(t)

	// AI replies persisted before the agent identity existed.
	for i := 0; i < 2; i++ {
		if _, err := messages.Append(PlaceholderAgentID, room.ID, "placeholder reply", domain.KindAI); err != nil {
			t.Fatalf("append placeholder: %v", err)
		}
	}
	// A human message with a real author must not be touched.
	if _, err := messages.Append(user.ID, room.ID, "human message", domain.KindHuman); err != nil {
		t.Fatalf("append human: %v", err)
	}

	agent, err := users.EnsureReservedAgent()
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}
	changed, err := messages.RepairAgentAuthors(agent.ID)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if changed != 2 {
		t.Fatalf("repaired %d rows, want 2", changed)
	}

	history, err := messages.History(room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, msg := range history {
		if msg.Kind == domain.KindAI && msg.AuthorID != agent.ID {
			t.Fatalf("ai message %d still has author %d", msg.ID, msg.AuthorID)
		}
		if msg.Kind == domain.KindHuman && msg.AuthorID != user.ID {
			t.Fatalf("human message author changed to %d", msg.AuthorID)
		}
	}
}

func TestReservedAgentRunsRepairOncePerColdStart(t *testing.T) {
	ms := store.NewMemoryStore()
	a := &App{
		Users:       NewUsers(ms),
		Rooms:       NewRooms(ms),
		Messages:    NewMessages(ms),
		Recommender: NewRecommender(),
	}
	user, err := a.Users.EnsureUser("john_doe", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	room, err := a.Rooms.Create(user.ID, "repairs", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := a.Messages.Append(PlaceholderAgentID, room.ID, "early reply", domain.KindAI); err != nil {
		t.Fatalf("append: %v", err)
	}

	agent, err := a.ReservedAgent()
	if err != nil {
		t.Fatalf("reserved agent: %v", err)
	}
	history, err := a.Messages.History(room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[0].AuthorID != agent.ID {
		t.Fatalf("placeholder not repaired, author = %d", history[0].AuthorID)
	}

	// Later placeholder rows are left alone: the repair ran already.
	if _, err := a.Messages.Append(PlaceholderAgentID, room.ID, "late reply", domain.KindAI); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := a.ReservedAgent(); err != nil {
		t.Fatalf("reserved agent again: %v", err)
	}
	history, err = a.Messages.History(room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[1].AuthorID != PlaceholderAgentID {
		t.Fatalf("repair ran twice, author = %d", history[1].AuthorID)
	}
}
