package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeError marks a structurally malformed inbound payload.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err came from payload decoding.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// Encode serializes an outbound message to its wire text.
func Encode(order WorkOrder) ([]byte, error) {
	if order.Order == "" {
		return nil, errors.New("work order without order name")
	}
	return json.Marshal(order)
}

// decodeWorkOrder parses an encoded WorkOrder, keeping numbers as json.Number.
func decodeWorkOrder(raw []byte) (WorkOrder, error) {
	var order WorkOrder
	if err := unmarshal(raw, &order); err != nil {
		return WorkOrder{}, &DecodeError{Stage: "work order", Err: err}
	}
	if order.Order == "" {
		return WorkOrder{}, &DecodeError{Stage: "work order", Err: errors.New("missing order")}
	}
	return order, nil
}

// DecodeInbound parses the envelope of an inbound message.
func DecodeInbound(raw []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := unmarshal(raw, &msg); err != nil {
		return InboundMessage{}, &DecodeError{Stage: "message", Err: err}
	}
	switch msg.Type {
	case TypeEvent, TypeQuestion:
	case "":
		return InboundMessage{}, &DecodeError{Stage: "message", Err: errors.New("missing type")}
	default:
		return InboundMessage{}, &DecodeError{Stage: "message", Err: fmt.Errorf("unknown type %q", msg.Type)}
	}
	if isNull(msg.Data) {
		return InboundMessage{}, &DecodeError{Stage: "message", Err: errors.New("missing data")}
	}
	return msg, nil
}

// Event decodes the data of an event message.
func (m InboundMessage) Event() (EventPayload, error) {
	var payload EventPayload
	if err := unmarshal(m.Data, &payload); err != nil {
		return EventPayload{}, &DecodeError{Stage: "event", Err: err}
	}
	if payload.Event == "" {
		return EventPayload{}, &DecodeError{Stage: "event", Err: errors.New("missing event name")}
	}
	return payload, nil
}

// Question decodes the data of a question message.
func (m InboundMessage) Question() (QuestionPayload, error) {
	var payload QuestionPayload
	if err := unmarshal(m.Data, &payload); err != nil {
		return QuestionPayload{}, &DecodeError{Stage: "question", Err: err}
	}
	if payload.Ask == "" {
		return QuestionPayload{}, &DecodeError{Stage: "question", Err: errors.New("missing ask")}
	}
	return payload, nil
}

// DecodeData decodes event data into v, reporting failures as DecodeError.
func DecodeData(event string, raw json.RawMessage, v any) error {
	if isNull(raw) {
		return &DecodeError{Stage: event, Err: errors.New("missing data")}
	}
	if err := unmarshal(raw, v); err != nil {
		return &DecodeError{Stage: event, Err: err}
	}
	return nil
}

// DecodeEmbedded decodes data that the server sends as a JSON document
// wrapped in a JSON string. Unwrapped objects are accepted as well.
func DecodeEmbedded(event string, raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return &DecodeError{Stage: event, Err: err}
		}
		raw = json.RawMessage(inner)
	}
	return DecodeData(event, raw, v)
}

// EncodeEmbedded renders v as a JSON document inside a string, the form
// used for candidate and answer details.
func EncodeEmbedded(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
