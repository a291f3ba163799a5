package store

import (
	"errors"

	"cinechat/pkg/domain"
)

// ErrDuplicate reports a unique-constraint violation (username, email).
var ErrDuplicate = errors.New("duplicate record")

// Store defines persistence operations for users, rooms, and messages.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	GetUserByID(id int64) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)

	// rooms
	CreateRoom(r domain.Room) (domain.Room, error)
	GetRoom(id int64) (domain.Room, bool, error)
	ListActiveRooms(ownerID int64) ([]domain.RoomSummary, error)
	DeactivateRoom(id int64) error

	// messages
	AppendMessage(m domain.Message) (domain.Message, error)
	ListMessages(roomID int64) ([]domain.Message, error)
	ReassignAuthor(kind domain.MessageKind, fromAuthorID, toAuthorID int64) (int64, error)
}
