package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cinechat/internal/app"
	"cinechat/internal/ratelimit"
	"cinechat/pkg/domain"
)

const defaultReplyDelay = 750 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Coordinator is the real-time core: it tracks which connection has joined
// which room, relays new messages to room members, and drives the
// recommendation pipeline asynchronously.
//
// Membership lives only in process memory; losing it just requires a
// re-join.
type Coordinator struct {
	app        *app.App
	limiter    *ratelimit.FixedWindowLimiter
	replyDelay time.Duration

	mu    sync.RWMutex
	conns map[string]*conn
	rooms map[int64]map[string]*conn // membership index: room -> conn id
	seats map[string]map[int64]bool  // reverse index: conn id -> joined rooms
}

// CoordinatorConfig wires the coordinator's dependencies.
type CoordinatorConfig struct {
	App        *app.App
	Limiter    *ratelimit.FixedWindowLimiter // optional send_message quota
	ReplyDelay time.Duration                 // pacing before ai_message; <0 means none
}

// NewCoordinator constructs the session coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	delay := cfg.ReplyDelay
	if delay == 0 {
		delay = defaultReplyDelay
	} else if delay < 0 {
		delay = 0
	}
	return &Coordinator{
		app:        cfg.App,
		limiter:    cfg.Limiter,
		replyDelay: delay,
		conns:      make(map[string]*conn),
		rooms:      make(map[int64]map[string]*conn),
		seats:      make(map[string]map[int64]bool),
	}
}

// HandleWS upgrades the request and serves the connection until it drops.
func (co *Coordinator) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	c := newConn(uuid.NewString(), sock)
	co.register(c)
	slog.Info("ws connected", "conn_id", c.id)

	go c.writePump()
	co.readPump(c)

	co.disconnect(c)
	slog.Info("ws disconnected", "conn_id", c.id)
}

func (co *Coordinator) register(c *conn) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.conns[c.id] = c
	co.seats[c.id] = make(map[int64]bool)
}

// disconnect drops all membership records for the connection. The message
// log is untouched.
func (co *Coordinator) disconnect(c *conn) {
	co.mu.Lock()
	for roomID := range co.seats[c.id] {
		delete(co.rooms[roomID], c.id)
		if len(co.rooms[roomID]) == 0 {
			delete(co.rooms, roomID)
		}
	}
	delete(co.seats, c.id)
	delete(co.conns, c.id)
	co.mu.Unlock()
	c.close()
}

func (co *Coordinator) readPump(c *conn) {
	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read failed", "conn_id", c.id, "err", err)
			}
			return
		}
		co.dispatch(c, data)
	}
}

// dispatch routes one client event. Handler failures never tear down the
// connection or the coordinator: expected domain errors surface with their
// message, anything else becomes a generic failure notice.
func (co *Coordinator) dispatch(c *conn, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("ws handler panicked", "conn_id", c.id, "panic", rec)
			co.sendError(c, "internal error")
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		co.sendError(c, "malformed event")
		return
	}

	var err error
	switch env.Event {
	case evJoinRoom:
		err = co.handleJoin(c, env.Data)
	case evLeaveRoom:
		err = co.handleLeave(c, env.Data)
	case evSendMessage:
		err = co.handleSend(c, env.Data)
	case evCreateRoom:
		err = co.handleCreateRoom(c, env.Data)
	case evGetRooms:
		err = co.handleGetRooms(c, env.Data)
	case evGetMessages:
		err = co.handleGetMessages(c, env.Data)
	default:
		co.sendError(c, fmt.Sprintf("unknown event %q", env.Event))
		return
	}
	if err != nil {
		co.reportError(c, env.Event, err)
	}
}

func (co *Coordinator) reportError(c *conn, event string, err error) {
	var verr domain.ValidationErrors
	switch {
	case errors.As(err, &verr):
		co.sendError(c, verr.Error())
	case errors.Is(err, app.ErrRoomNotFound), errors.Is(err, app.ErrUserNotFound):
		co.sendError(c, err.Error())
	default:
		slog.Error("ws handler failed", "conn_id", c.id, "event", event, "err", err)
		co.sendError(c, "internal error")
	}
}

func (co *Coordinator) handleJoin(c *conn, data json.RawMessage) error {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid join_room payload"}}
	}
	room, err := co.app.Rooms.Get(req.RoomID)
	if err != nil {
		return err
	}
	if _, err := co.resolveUser(req.UserID, req.Username); err != nil {
		return err
	}

	co.mu.Lock()
	if co.rooms[room.ID] == nil {
		co.rooms[room.ID] = make(map[string]*conn)
	}
	co.rooms[room.ID][c.id] = c
	if co.seats[c.id] == nil {
		co.seats[c.id] = make(map[int64]bool)
	}
	co.seats[c.id][room.ID] = true
	co.mu.Unlock()

	co.sendEvent(c, evRoomJoined, roomRef{RoomID: room.ID})

	// History goes to the joining connection only.
	history, err := co.app.Messages.History(room.ID)
	if err != nil {
		return err
	}
	co.sendEvent(c, evMessagesList, history)
	return nil
}

// resolveUser maps the client-supplied identity to a user record: by ID when
// given, otherwise by username with creation on first contact.
func (co *Coordinator) resolveUser(userID int64, username string) (domain.User, error) {
	if userID != 0 {
		return co.app.Users.GetByID(userID)
	}
	if username != "" {
		return co.app.Users.EnsureUser(username, "")
	}
	return domain.User{}, app.ErrUserNotFound
}

func (co *Coordinator) handleLeave(c *conn, data json.RawMessage) error {
	var req leaveRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid leave_room payload"}}
	}
	co.mu.Lock()
	delete(co.rooms[req.RoomID], c.id)
	if len(co.rooms[req.RoomID]) == 0 {
		delete(co.rooms, req.RoomID)
	}
	delete(co.seats[c.id], req.RoomID)
	co.mu.Unlock()

	co.sendEvent(c, evRoomLeft, roomRef{RoomID: req.RoomID})
	return nil
}

func (co *Coordinator) handleSend(c *conn, data json.RawMessage) error {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid send_message payload"}}
	}
	user, err := co.app.Users.GetByID(req.UserID)
	if err != nil {
		return err
	}
	if co.limiter != nil && !co.limiter.Allow(fmt.Sprintf("user:%d", user.ID)) {
		return domain.ValidationErrors{{Field: "content", Message: "Too many messages, slow down"}}
	}

	msg, err := co.app.Messages.Append(user.ID, req.RoomID, req.Content, domain.KindHuman)
	if err != nil {
		return err
	}
	msg.AuthorName = user.Username
	co.broadcast(req.RoomID, evNewMessage, msg)

	// The AI reply is generated off this handler; its failure can never
	// reach the sender as an error.
	go co.generateReply(req.RoomID, msg.Content)
	return nil
}

// generateReply drives the recommendation pipeline for one human message
// and pushes the AI reply to the room when ready.
func (co *Coordinator) generateReply(roomID int64, userMessage string) {
	ctx := context.Background()

	history, err := co.app.Messages.History(roomID)
	if err != nil {
		slog.Error("load history for reply", "room_id", roomID, "err", err)
		history = nil
	}
	reply := co.app.Recommender.Respond(ctx, userMessage, history)

	authorID := app.PlaceholderAgentID
	authorName := app.ReservedAgentUsername
	agent, err := co.app.ReservedAgent()
	if err != nil {
		// Persist with the placeholder author; the repair pass rewrites it
		// once the identity exists.
		slog.Warn("reserved agent unavailable, using placeholder author", "err", err)
	} else {
		authorID = agent.ID
		authorName = agent.Username
	}

	msg, err := co.app.Messages.Append(authorID, roomID, reply, domain.KindAI)
	if err != nil {
		slog.Error("persist ai reply", "room_id", roomID, "err", err)
		return
	}
	msg.AuthorName = authorName

	// Pacing only; not a correctness requirement.
	if co.replyDelay > 0 {
		time.Sleep(co.replyDelay)
	}
	co.broadcast(roomID, evAIMessage, msg)
}

func (co *Coordinator) handleCreateRoom(c *conn, data json.RawMessage) error {
	var req createRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid create_room payload"}}
	}
	room, err := co.app.Rooms.Create(req.UserID, req.Name, req.Description)
	if err != nil {
		return err
	}
	co.sendEvent(c, evRoomCreated, room)
	return nil
}

func (co *Coordinator) handleGetRooms(c *conn, data json.RawMessage) error {
	var req getRoomsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid get_rooms payload"}}
	}
	rooms, err := co.app.Rooms.ListActive(req.UserID)
	if err != nil {
		return err
	}
	co.sendEvent(c, evRoomsList, rooms)
	return nil
}

func (co *Coordinator) handleGetMessages(c *conn, data json.RawMessage) error {
	var req getMessagesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ValidationErrors{{Field: "data", Message: "invalid get_messages payload"}}
	}
	history, err := co.app.Messages.History(req.RoomID)
	if err != nil {
		return err
	}
	co.sendEvent(c, evMessagesList, history)
	return nil
}

// broadcast sends an event to every connection currently joined to the
// room. Delivery is best-effort against a membership snapshot taken at emit
// time; a connection leaving mid-broadcast may or may not see the message.
func (co *Coordinator) broadcast(roomID int64, event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		slog.Error("marshal broadcast", "event", event, "err", err)
		return
	}
	co.mu.RLock()
	members := make([]*conn, 0, len(co.rooms[roomID]))
	for _, member := range co.rooms[roomID] {
		members = append(members, member)
	}
	co.mu.RUnlock()

	for _, member := range members {
		if err := member.trySend(data); err != nil {
			slog.Debug("broadcast drop", "conn_id", member.id, "event", event, "err", err)
		}
	}
}

func (co *Coordinator) sendEvent(c *conn, event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		slog.Error("marshal event", "event", event, "err", err)
		return
	}
	if err := c.trySend(data); err != nil {
		slog.Debug("send drop", "conn_id", c.id, "event", event, "err", err)
	}
}

func (co *Coordinator) sendError(c *conn, message string) {
	co.sendEvent(c, evError, errorPayload{Message: message})
}

func marshalEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
