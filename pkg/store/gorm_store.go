package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cinechat/pkg/domain"
)

const migrateLockID int64 = 52148214

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &RoomModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user and returns it with the assigned ID.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, mapStoreError(err)
	}
	return userFromModel(model), nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by normalized username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateRoom inserts a room and returns it with the assigned ID.
func (s *GormStore) CreateRoom(r domain.Room) (domain.Room, error) {
	model := roomToModel(r)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Room{}, mapStoreError(err)
	}
	return roomFromModel(model), nil
}

// GetRoom retrieves a room by ID.
func (s *GormStore) GetRoom(id int64) (domain.Room, bool, error) {
	var model RoomModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, false, nil
		}
		return domain.Room{}, false, err
	}
	return roomFromModel(model), true, nil
}

// ListActiveRooms returns the owner's active rooms, most recently updated
// first, each annotated with its message count.
func (s *GormStore) ListActiveRooms(ownerID int64) ([]domain.RoomSummary, error) {
	type roomRow struct {
		RoomModel
		MessageCount int64
	}
	var rows []roomRow
	if err := s.db.Model(&RoomModel{}).
		Select("room_models.*, (SELECT COUNT(*) FROM message_models WHERE message_models.room_id = room_models.id) AS message_count").
		Where("room_models.owner_id = ? AND room_models.is_active", ownerID).
		Order("room_models.updated_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.RoomSummary, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.RoomSummary{
			Room:         roomFromModel(row.RoomModel),
			MessageCount: row.MessageCount,
		})
	}
	return res, nil
}

// DeactivateRoom soft-deletes a room. Message history stays intact.
func (s *GormStore) DeactivateRoom(id int64) error {
	return s.db.Model(&RoomModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

// AppendMessage records a message and bumps the room's updated_at so the
// room listing reflects recent activity.
func (s *GormStore) AppendMessage(m domain.Message) (domain.Message, error) {
	model := messageToModel(m)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&RoomModel{}).
			Where("id = ?", m.RoomID).
			Update("updated_at", model.CreatedAt).Error
	})
	if err != nil {
		return domain.Message{}, mapStoreError(err)
	}
	res := messageFromModel(model)
	res.AuthorName = m.AuthorName
	return res, nil
}

// ListMessages returns the room history oldest-first, ties broken by
// insertion order, with each message annotated by its author's username.
func (s *GormStore) ListMessages(roomID int64) ([]domain.Message, error) {
	type messageRow struct {
		MessageModel
		AuthorName string
	}
	var rows []messageRow
	if err := s.db.Model(&MessageModel{}).
		Select("message_models.*, user_models.username AS author_name").
		Joins("LEFT JOIN user_models ON user_models.id = message_models.author_id").
		Where("message_models.room_id = ?", roomID).
		Order("message_models.created_at ASC, message_models.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		msg := messageFromModel(row.MessageModel)
		msg.AuthorName = row.AuthorName
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ReassignAuthor rewrites the author of all messages of a kind from one
// user ID to another and reports how many rows changed.
func (s *GormStore) ReassignAuthor(kind domain.MessageKind, fromAuthorID, toAuthorID int64) (int64, error) {
	tx := s.db.Model(&MessageModel{}).
		Where("kind = ? AND author_id = ?", string(kind), fromAuthorID).
		Update("author_id", toAuthorID)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func userToModel(u domain.User) UserModel {
	var email *string
	if strings.TrimSpace(u.Email) != "" {
		value := strings.TrimSpace(u.Email)
		email = &value
	}
	return UserModel{
		ID:        u.ID,
		Username:  u.Username,
		Email:     email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	email := ""
	if m.Email != nil {
		email = *m.Email
	}
	return domain.User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     email,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func roomToModel(r domain.Room) RoomModel {
	return RoomModel{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roomFromModel(m RoomModel) domain.Room {
	return domain.Room{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
		OwnerID:     m.OwnerID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func messageToModel(m domain.Message) MessageModel {
	return MessageModel{
		ID:        m.ID,
		Content:   m.Content,
		Kind:      string(m.Kind),
		AuthorID:  m.AuthorID,
		RoomID:    m.RoomID,
		CreatedAt: m.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		Content:   m.Content,
		Kind:      domain.MessageKind(m.Kind),
		AuthorID:  m.AuthorID,
		RoomID:    m.RoomID,
		CreatedAt: m.CreatedAt,
	}
}
