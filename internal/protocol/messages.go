package protocol

import "encoding/json"

// Message types carried by InboundMessage.Type.
const (
	TypeEvent    = "event"
	TypeQuestion = "question"
)

// Outbound order vocabulary.
const (
	OrderUserMessage              = "user_message"
	OrderCandidate                = "candidate"
	OrderAnswer                   = "answer"
	OrderMediaRequest             = "media_request"
	OrderIdentifyStreamID         = "identify_streamid"
	OrderValidateAccessToken      = "validate_access_token"
	OrderSetUserPassword          = "set_user_password"
	OrderSetUserName              = "set_user_name"
	OrderValidateUserNamePassword = "validate_user_name_password"
	OrderGetCurrentGuests         = "get_current_guests"
	OrderCloseConnection          = "close_connection"
)

// Inbound event vocabulary.
const (
	EventCandidate        = "candidate"
	EventOffer            = "offer"
	EventJoinedRoom       = "joined_room"
	EventCreatedRoom      = "created_room"
	EventUserMessage      = "user_message"
	EventUserLoggedIn     = "user_logged_in"
	EventUserNameChange   = "user_name_change"
	EventError            = "error"
	EventStreamIDUserName = "streamid_user_name"
	EventUserEnteredChat  = "user_entered_chat"
	EventUserExitedChat   = "user_exited_chat"
	EventCurrentGuests    = "current_guests"
)

// Question vocabulary.
const (
	AskAccessToken = "access_token"
	AskCredentials = "credentials"
)

// WorkOrder is the only outbound message shape.
type WorkOrder struct {
	Order   string `json:"order"`
	Details any    `json:"details,omitempty"`
}

// InboundMessage is the envelope of everything the server sends.
// Data holds an EventPayload or a QuestionPayload depending on Type.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventPayload names an event and carries its event-specific data.
type EventPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// QuestionPayload asks the client for something it holds locally.
type QuestionPayload struct {
	Ask string `json:"ask"`
}
