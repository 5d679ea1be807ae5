package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ChatMessage is one line of chat, live or replayed from history.
// The server sends either an object or a bare string.
type ChatMessage struct {
	Text     string `json:"text"`
	From     string `json:"from,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Name     string `json:"name,omitempty"`
	UserID   ID     `json:"user_id,omitempty"`
	ToUserID ID     `json:"to_user_id,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*m = ChatMessage{Text: text}
		return nil
	}
	type plain ChatMessage
	var out struct {
		plain
		CamelToUserID ID `json:"toUserID"`
	}
	if err := unmarshal(trimmed, &out); err != nil {
		return err
	}
	*m = ChatMessage(out.plain)
	if m.ToUserID == "" {
		m.ToUserID = out.CamelToUserID
	}
	return nil
}

// Sender picks the display name: from, then user_name, then name.
func (m ChatMessage) Sender() string {
	switch {
	case m.From != "":
		return m.From
	case m.UserName != "":
		return m.UserName
	default:
		return m.Name
	}
}

// IsPrivate reports whether the message was addressed to one recipient.
func (m ChatMessage) IsPrivate() bool {
	return m.Private || m.ToUserID != ""
}

// JoinedRoom is the data of joined_room.
type JoinedRoom struct {
	RoomID  ID            `json:"room_id"`
	ChatLog []ChatMessage `json:"chat_log"`
	Name    string        `json:"name"`
}

// UserLoggedIn is the data of user_logged_in.
type UserLoggedIn struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	UserName    string `json:"user_name"`
	UserID      ID     `json:"user_id"`
}

// Credential returns the access credential the server issued.
func (u UserLoggedIn) Credential() string {
	if u.AccessToken != "" {
		return u.AccessToken
	}
	return u.Token
}

// UserNameChange is the data of user_name_change.
type UserNameChange struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
	UserID  ID     `json:"user_id"`
}

// ErrorEvent is the data of error. A bare string is taken as a private message.
type ErrorEvent struct {
	Message string `json:"message"`
	Public  bool   `json:"public"`
}

func (e *ErrorEvent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*e = ErrorEvent{Message: text}
		return nil
	}
	type plain ErrorEvent
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*e = ErrorEvent(out)
	return nil
}

// StreamIDUserName is the data of streamid_user_name.
type StreamIDUserName struct {
	StreamID string `json:"stream_id"`
	UserName string `json:"user_name"`
}

// Presence is the data of user_entered_chat and user_exited_chat.
type Presence struct {
	UserName string `json:"user_name"`
	UserID   ID     `json:"user_id"`
}

// Guest is one entry of current_guests.
type Guest struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// DecodeRoomID reads created_room data, a string or a number.
func DecodeRoomID(raw json.RawMessage) (string, error) {
	var value any
	if err := DecodeData(EventCreatedRoom, raw, &value); err != nil {
		return "", err
	}
	var id string
	switch v := value.(type) {
	case string:
		id = strings.TrimSpace(v)
	case json.Number:
		id = v.String()
	}
	if id == "" {
		return "", &DecodeError{Stage: EventCreatedRoom, Err: errors.New("missing room id")}
	}
	return id, nil
}

// DecodeCandidate reads candidate data into an ICE candidate.
func DecodeCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if err := DecodeEmbedded(EventCandidate, raw, &candidate); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	if candidate.Candidate == "" {
		return webrtc.ICECandidateInit{}, &DecodeError{Stage: EventCandidate, Err: errors.New("empty candidate")}
	}
	return candidate, nil
}

// DecodeOffer reads offer data into a session description.
func DecodeOffer(raw json.RawMessage) (webrtc.SessionDescription, error) {
	var offer webrtc.SessionDescription
	if err := DecodeEmbedded(EventOffer, raw, &offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if offer.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, &DecodeError{Stage: EventOffer, Err: errors.New("description is not an offer")}
	}
	if strings.TrimSpace(offer.SDP) == "" {
		return webrtc.SessionDescription{}, &DecodeError{Stage: EventOffer, Err: errors.New("empty sdp")}
	}
	return offer, nil
}
