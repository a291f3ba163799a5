package server

import "encoding/json"

// Client → server events.
const (
	evJoinRoom    = "join_room"
	evLeaveRoom   = "leave_room"
	evSendMessage = "send_message"
	evCreateRoom  = "create_room"
	evGetRooms    = "get_rooms"
	evGetMessages = "get_messages"
)

// Server → client events.
const (
	evRoomJoined   = "room_joined"
	evRoomLeft     = "room_left"
	evNewMessage   = "new_message"
	evAIMessage    = "ai_message"
	evRoomCreated  = "room_created"
	evRoomsList    = "rooms_list"
	evMessagesList = "messages_list"
	evError        = "error"
)

// envelope frames every message on the wire in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinRoomRequest struct {
	RoomID int64 `json:"roomId"`
	UserID int64 `json:"userId"`
	// Username lets a first-contact client join before it has an ID; the
	// identity is created on the fly.
	Username string `json:"username,omitempty"`
}

type leaveRoomRequest struct {
	RoomID int64 `json:"roomId"`
}

type sendMessageRequest struct {
	RoomID  int64  `json:"roomId"`
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

type createRoomRequest struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type getRoomsRequest struct {
	UserID int64 `json:"userId"`
}

type getMessagesRequest struct {
	RoomID int64 `json:"roomId"`
}

type roomRef struct {
	RoomID int64 `json:"roomId"`
}

type errorPayload struct {
	Message string `json:"message"`
}
