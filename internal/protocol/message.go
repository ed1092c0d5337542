package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"facemirror/internal/profile"
	"facemirror/internal/status"
	"facemirror/internal/view"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types.
const (
	TypeRecognitionStatus = "recognition.status"
	TypeSceneUpdate       = "scene.update"
	TypeOverlayUpdate     = "overlay.update"
	TypeProfilesList      = "profiles.list"
	TypeError             = "error"
)

// Client → Server message types.
const (
	TypeRecognitionStart = "recognition.start"
	TypeRecognitionStop  = "recognition.stop"
	TypeProfilesGet      = "profiles.get"
	TypeStatusGet        = "status.get"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrNoStatus       = "NO_STATUS"
)

// Server → Client payloads.

// RecognitionStatusPayload carries a normalized status record plus the
// resolved display image for the recognized user.
type RecognitionStatusPayload struct {
	Status    status.Record `json:"status"`
	ImagePath string        `json:"imagePath,omitempty"`
}

// SceneUpdatePayload carries the derived display scene.
type SceneUpdatePayload struct {
	Scene view.Scene `json:"scene"`
}

// OverlayUpdatePayload carries the dimming overlay state.
type OverlayUpdatePayload struct {
	Phase   view.OverlayPhase `json:"phase"`
	Opacity float64           `json:"opacity"`
}

type ProfilesListPayload struct {
	Profiles []profile.Profile `json:"profiles"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

// RecognitionStartPayload optionally overrides the poll interval.
type RecognitionStartPayload struct {
	IntervalMs int `json:"intervalMs,omitempty"`
}
