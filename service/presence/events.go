package presence

import "encoding/json"

// Server-emitted events.
const (
	EventNewMessage            = "newMessage"
	EventConversationUpdated   = "conversationUpdated"
	EventConversationDeleted   = "conversationDeleted"
	EventTyping                = "typing"
	EventNewNotification       = "newNotification"
	EventFriendListeningUpdate = "friendListeningUpdate"
)

// Client-issued events.
const (
	EventAuthenticate      = "authenticate"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
)

// Frame is the JSON envelope both directions use on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func EncodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
