package domain

import "time"

// MessageKind tags the author kind of a chat message.
type MessageKind string

const (
	KindHuman  MessageKind = "human"
	KindAI     MessageKind = "ai"
	KindSystem MessageKind = "system"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	OwnerID     int64     `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RoomSummary is a room annotated with its message count for listings.
type RoomSummary struct {
	Room
	MessageCount int64 `json:"messageCount"`
}

type Message struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	AuthorID  int64       `json:"userId"`
	// AuthorName is filled in by history queries; it is not stored on the row.
	AuthorName string    `json:"username,omitempty"`
	RoomID     int64     `json:"roomId"`
	CreatedAt  time.Time `json:"createdAt"`
}
