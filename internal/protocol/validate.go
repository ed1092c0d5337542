package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeRecognitionStart: true,
	TypeRecognitionStop:  true,
	TypeProfilesGet:      true,
	TypeStatusGet:        true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error. Payload is
// optional for types without parameters.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	switch msg.Type {
	case TypeRecognitionStart:
		if msg.Payload == nil {
			break // interval defaults server-side
		}
		var p RecognitionStartPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.IntervalMs < 0 {
			return nil, fmt.Errorf("negative 'intervalMs' in %s payload", msg.Type)
		}
	}

	return &msg, nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
