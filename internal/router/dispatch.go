package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/media"
	"github.com/saker-ai/spiritio-client/internal/protocol"
)

type eventHandler func(context.Context, json.RawMessage) error

type questionHandler func(context.Context) error

// credentialsNotice answers the server asking for a login.
const credentialsNotice = "please log in with /login <name> <password>, or pick a name with /set name <name>"

func (r *Router) eventHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		protocol.EventCandidate:        r.onCandidate,
		protocol.EventOffer:            r.onOffer,
		protocol.EventJoinedRoom:       r.onJoinedRoom,
		protocol.EventCreatedRoom:      r.onCreatedRoom,
		protocol.EventUserMessage:      r.onUserMessage,
		protocol.EventUserLoggedIn:     r.onUserLoggedIn,
		protocol.EventUserNameChange:   r.onUserNameChange,
		protocol.EventError:            r.onError,
		protocol.EventStreamIDUserName: r.onStreamIDUserName,
		protocol.EventUserEnteredChat:  r.onUserEnteredChat,
		protocol.EventUserExitedChat:   r.onUserExitedChat,
		protocol.EventCurrentGuests:    r.onCurrentGuests,
	}
}

func (r *Router) questionHandlers() map[string]questionHandler {
	return map[string]questionHandler{
		protocol.AskAccessToken: r.onAskAccessToken,
		protocol.AskCredentials: r.onAskCredentials,
	}
}

func (r *Router) dispatch(ctx context.Context, raw []byte) error {
	msg, err := protocol.DecodeInbound(raw)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.TypeEvent:
		payload, err := msg.Event()
		if err != nil {
			return err
		}
		handler, ok := r.eventHandlers()[payload.Event]
		if !ok {
			r.logger.Debug("unknown event", zap.String("event", payload.Event))
			return nil
		}
		r.logger.Debug("event received", zap.String("event", payload.Event))
		return handler(ctx, payload.Data)
	case protocol.TypeQuestion:
		payload, err := msg.Question()
		if err != nil {
			return err
		}
		handler, ok := r.questionHandlers()[payload.Ask]
		if !ok {
			r.logger.Debug("unknown question", zap.String("ask", payload.Ask))
			return nil
		}
		return handler(ctx)
	}
	return nil
}

// ignoreUnavailable swallows the no-op result of media calls on a session without media.
func (r *Router) ignoreUnavailable(op string, err error) error {
	if errors.Is(err, media.ErrUnavailable) {
		r.logger.Debug("media unavailable, skipped", zap.String("op", op))
		return nil
	}
	return err
}

func (r *Router) onCandidate(_ context.Context, data json.RawMessage) error {
	candidate, err := protocol.DecodeCandidate(data)
	if err != nil {
		return err
	}
	return r.ignoreUnavailable("add candidate", r.media.AddCandidate(candidate))
}

func (r *Router) onOffer(_ context.Context, data json.RawMessage) error {
	offer, err := protocol.DecodeOffer(data)
	if err != nil {
		return err
	}
	if err := r.media.SetRemoteDescription(offer); err != nil {
		return r.ignoreUnavailable("set remote description", err)
	}
	answer, err := r.media.CreateAnswer()
	if err != nil {
		return err
	}
	if err := r.media.SetLocalDescription(answer); err != nil {
		return err
	}
	r.refreshMediaStatus()

	encoded, err := protocol.EncodeEmbedded(answer)
	if err != nil {
		return err
	}
	return r.send(protocol.OrderAnswer, encoded)
}

func (r *Router) onJoinedRoom(ctx context.Context, data json.RawMessage) error {
	var joined protocol.JoinedRoom
	if err := protocol.DecodeData(protocol.EventJoinedRoom, data, &joined); err != nil {
		return err
	}
	for _, entry := range joined.ChatLog {
		message := chatMessage(entry)
		message.Kind = KindHistory
		r.presenter.AddMessage(message)
	}
	if id := joined.RoomID.String(); id != "" && id != r.location.Room() {
		r.setLocation(r.location.WithRoom(id))
	}

	if err := r.startMedia(ctx); err != nil {
		return err
	}
	return r.send(protocol.OrderGetCurrentGuests, nil)
}

func (r *Router) onCreatedRoom(_ context.Context, data json.RawMessage) error {
	id, err := protocol.DecodeRoomID(data)
	if err != nil {
		return err
	}
	r.setLocation(r.location.WithRoom(id))
	r.notice(fmt.Sprintf("room %s is reachable at %s", id, r.location.String()))
	return nil
}

func (r *Router) onUserMessage(_ context.Context, data json.RawMessage) error {
	var entry protocol.ChatMessage
	if err := protocol.DecodeData(protocol.EventUserMessage, data, &entry); err != nil {
		return err
	}
	r.presenter.AddMessage(chatMessage(entry))
	return nil
}

// chatMessage converts a chat line, marking private ones on the sender name.
func chatMessage(entry protocol.ChatMessage) Message {
	message := Message{Kind: KindChat, From: entry.Sender(), Text: entry.Text, Private: entry.IsPrivate()}
	if message.Private && message.From != "" {
		message.From += " (to you)"
	}
	return message
}

func (r *Router) onUserLoggedIn(_ context.Context, data json.RawMessage) error {
	var login protocol.UserLoggedIn
	if err := protocol.DecodeData(protocol.EventUserLoggedIn, data, &login); err != nil {
		return err
	}
	if token := login.Credential(); token != "" && r.credentials != nil {
		if err := r.credentials.Save(token); err != nil {
			return fmt.Errorf("store access token: %w", err)
		}
	}
	r.updateStatus(func(s *Status) { s.UserName = login.UserName })
	if login.UserName != "" {
		r.notice(fmt.Sprintf("logged in as %s", login.UserName))
	} else {
		r.notice("logged in")
	}
	return nil
}

func (r *Router) onUserNameChange(_ context.Context, data json.RawMessage) error {
	var change protocol.UserNameChange
	if err := protocol.DecodeData(protocol.EventUserNameChange, data, &change); err != nil {
		return err
	}
	r.roster.Rename(change.OldName, change.NewName)
	r.mu.Lock()
	if r.status.UserName != "" && r.status.UserName == change.OldName {
		r.status.UserName = change.NewName
	}
	r.mu.Unlock()

	if change.OldName == "" {
		r.notice(fmt.Sprintf("you are now known as %s", change.NewName))
		return nil
	}
	r.notice(fmt.Sprintf("%s is now known as %s", change.OldName, change.NewName))
	return nil
}

func (r *Router) onError(_ context.Context, data json.RawMessage) error {
	var event protocol.ErrorEvent
	if err := protocol.DecodeData(protocol.EventError, data, &event); err != nil {
		return err
	}
	r.logger.Warn("server error", zap.String("message", event.Message), zap.Bool("public", event.Public))
	if event.Public {
		r.diagnostic(fmt.Sprintf("error: %s", event.Message))
	}
	return nil
}

func (r *Router) onStreamIDUserName(_ context.Context, data json.RawMessage) error {
	var label protocol.StreamIDUserName
	if err := protocol.DecodeData(protocol.EventStreamIDUserName, data, &label); err != nil {
		return err
	}
	r.roster.LabelStream(label.StreamID, label.UserName)
	r.presenter.IdentifyStream(label.StreamID, label.UserName)
	return nil
}

func (r *Router) onUserEnteredChat(_ context.Context, data json.RawMessage) error {
	r.notice(fmt.Sprintf("%s entered the chat", presenceName(data)))
	return r.send(protocol.OrderGetCurrentGuests, nil)
}

func (r *Router) onUserExitedChat(_ context.Context, data json.RawMessage) error {
	r.notice(fmt.Sprintf("%s left the chat", presenceName(data)))
	return r.send(protocol.OrderGetCurrentGuests, nil)
}

// presenceName accepts a presence object or a bare name.
func presenceName(data json.RawMessage) string {
	var presence protocol.Presence
	if err := protocol.DecodeData("presence", data, &presence); err == nil && presence.UserName != "" {
		return presence.UserName
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil && name != "" {
		return name
	}
	return "someone"
}

func (r *Router) onCurrentGuests(_ context.Context, data json.RawMessage) error {
	var guests []protocol.Guest
	if err := protocol.DecodeData(protocol.EventCurrentGuests, data, &guests); err != nil {
		return err
	}
	r.roster.Replace(guests)
	count := r.roster.Len()
	r.updateStatus(func(s *Status) { s.Participants = count })
	r.presenter.SetParticipantList(r.roster.Guests())
	return nil
}

func (r *Router) onAskAccessToken(_ context.Context) error {
	token := ""
	if r.credentials != nil {
		stored, err := r.credentials.Load()
		if err != nil {
			r.logger.Warn("read access token failed", zap.Error(err))
		} else {
			token = stored
		}
	}
	return r.send(protocol.OrderValidateAccessToken, token)
}

// onAskCredentials means the stored token, if any, was not accepted.
func (r *Router) onAskCredentials(_ context.Context) error {
	if r.credentials != nil {
		if err := r.credentials.Clear(); err != nil {
			r.logger.Warn("clear access token failed", zap.Error(err))
		}
	}
	r.diagnostic(credentialsNotice)
	return nil
}
