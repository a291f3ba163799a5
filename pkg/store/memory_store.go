package store

import (
	"sort"
	"sync"
	"time"

	"cinechat/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development without Postgres and mirrors GormStore semantics, including
// uniqueness enforcement and ID assignment.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]domain.User
	byName   map[string]int64 // username -> user ID
	byEmail  map[string]int64 // email -> user ID
	rooms    map[int64]domain.Room
	messages map[int64][]domain.Message // room ID -> ordered messages
	nextUser int64
	nextRoom int64
	nextMsg  int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]domain.User),
		byName:   make(map[string]int64),
		byEmail:  make(map[string]int64),
		rooms:    make(map[int64]domain.Room),
		messages: make(map[int64][]domain.Message),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[u.Username]; exists {
		return domain.User{}, ErrDuplicate
	}
	if u.Email != "" {
		if _, exists := m.byEmail[u.Email]; exists {
			return domain.User{}, ErrDuplicate
		}
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}
	return u, nil
}

func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *MemoryStore) CreateRoom(r domain.Room) (domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRoom++
	r.ID = m.nextRoom
	m.rooms[r.ID] = r
	return r, nil
}

func (m *MemoryStore) GetRoom(id int64) (domain.Room, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok, nil
}

func (m *MemoryStore) ListActiveRooms(ownerID int64) ([]domain.RoomSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.RoomSummary, 0)
	for _, r := range m.rooms {
		if !r.IsActive || r.OwnerID != ownerID {
			continue
		}
		res = append(res, domain.RoomSummary{
			Room:         r,
			MessageCount: int64(len(m.messages[r.ID])),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

func (m *MemoryStore) DeactivateRoom(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	m.rooms[id] = r
	return nil
}

func (m *MemoryStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsg++
	msg.ID = m.nextMsg
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], msg)
	if r, ok := m.rooms[msg.RoomID]; ok {
		r.UpdatedAt = msg.CreatedAt
		m.rooms[msg.RoomID] = r
	}
	return msg, nil
}

func (m *MemoryStore) ListMessages(roomID int64) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.messages[roomID]
	res := make([]domain.Message, len(src))
	copy(res, src)
	// Appends already happen in insertion order; re-sort by timestamp with
	// the ID tie-break to match GormStore exactly.
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	for i := range res {
		if u, ok := m.users[res[i].AuthorID]; ok {
			res[i].AuthorName = u.Username
		}
	}
	return res, nil
}

func (m *MemoryStore) ReassignAuthor(kind domain.MessageKind, fromAuthorID, toAuthorID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for roomID, msgs := range m.messages {
		for i := range msgs {
			if msgs[i].Kind == kind && msgs[i].AuthorID == fromAuthorID {
				msgs[i].AuthorID = toAuthorID
				changed++
			}
		}
		m.messages[roomID] = msgs
	}
	return changed, nil
}
