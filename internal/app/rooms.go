package app

import (
	"fmt"
	"strings"
	"time"

	"cinechat/pkg/domain"
	"cinechat/pkg/store"
)

// Rooms provides CRUD over chat rooms scoped to an owning user.
// Deletion is logical only so message history stays intact.
type Rooms struct {
	store store.Store
}

// NewRooms constructs the room service on the given store.
func NewRooms(s store.Store) *Rooms {
	return &Rooms{store: s}
}

// Create persists a new active room owned by ownerID.
func (s *Rooms) Create(ownerID int64, name, description string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return domain.Room{}, domain.ValidationErrors{{Field: "name", Message: "Room name must be 1-100 characters"}}
	}
	if _, ok, err := s.store.GetUserByID(ownerID); err != nil {
		return domain.Room{}, fmt.Errorf("lookup owner: %w", err)
	} else if !ok {
		return domain.Room{}, ErrUserNotFound
	}
	now := time.Now().UTC()
	room, err := s.store.CreateRoom(domain.Room{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// ListActive returns the owner's active rooms, most recently updated first,
// with message counts.
func (s *Rooms) ListActive(ownerID int64) ([]domain.RoomSummary, error) {
	rooms, err := s.store.ListActiveRooms(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Get returns an active room, mapping absence or deactivation to
// ErrRoomNotFound.
func (s *Rooms) Get(id int64) (domain.Room, error) {
	room, ok, err := s.store.GetRoom(id)
	if err != nil {
		return domain.Room{}, fmt.Errorf("lookup room: %w", err)
	}
	if !ok || !room.IsActive {
		return domain.Room{}, ErrRoomNotFound
	}
	return room, nil
}

// Deactivate soft-deletes a room.
func (s *Rooms) Deactivate(id int64) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.store.DeactivateRoom(id)
}
