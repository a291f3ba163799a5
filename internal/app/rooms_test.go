package app

import (
	"errors"
	"testing"

	"cinechat/pkg/domain"
	"cinechat/pkg/store"
)

func TestCreateRoomValidation(t *testing.T) {
	ms := store.NewMemoryStore()
	users := NewUsers(ms)
	rooms := NewRooms(ms)

	user, err := users.EnsureUser("john_doe", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	if _, err := rooms.Create(user.ID, "   ", ""); err == nil {
		t.Fatal("expected error for blank room name")
	}
	if _, err := rooms.Create(999, "orphan room", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	room, err := rooms.Create(user.ID, "  Movie Night  ", "weekly picks")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Name != "Movie Night" {
		t.Fatalf("room name = %q, want trimmed", room.Name)
	}
	if !room.IsActive || room.OwnerID != user.ID {
		t.Fatalf("unexpected room: %+v", room)
	}
}

func TestListActiveRoomsOrderingAndCounts(t *testing.T) {
	ms := store.NewMemoryStore()
	users := NewUsers(ms)
	rooms := NewRooms(ms)
	messages := NewMessages(ms)

	user, err := users.EnsureUser("john_doe", "")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	first, err := rooms.Create(user.ID, "first", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := rooms.Create(user.ID, "second", "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Activity in the first room moves it back to the top.
	if _, err := messages.Append(user.ID, first.ID, "hello", domain.KindHuman); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := rooms.ListActive(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}
	if list[0].ID != first.ID {
		t.Fatalf("most recently active room should lead, got room %d", list[0].ID)
	}
	if list[0].MessageCount != 1 || list[1].MessageCount != 0 {
		t.Fatalf("unexpected message counts: %d, %d", list[0].MessageCount, list[1].MessageCount)
	}

	// Deactivated rooms disappear from the listing but keep their history.
	if err := rooms.Deactivate(second.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err = rooms.ListActive(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("unexpected listing after deactivate: %+v", list)
	}
	if _, err := rooms.Get(second.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for deactivated room, got %v", err)
	}
}
