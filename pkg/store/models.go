package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Username  string  `gorm:"uniqueIndex;not null"`
	Email     *string `gorm:"uniqueIndex"`
	IsActive  bool    `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type RoomModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"not null"`
	Description string
	IsActive    bool      `gorm:"not null;default:true"`
	OwnerID     int64     `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Content   string    `gorm:"type:text;not null"`
	Kind      string    `gorm:"not null;index"`
	AuthorID  int64     `gorm:"not null;index"`
	RoomID    int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}
