package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	payload := RecognitionStatusPayload{ImagePath: "/public/Tony-id.png"}

	msg, err := NewMessage(TypeRecognitionStatus, payload)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Type != TypeRecognitionStatus {
		t.Errorf("expected type %s, got %s", TypeRecognitionStatus, msg.Type)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}

	var p RecognitionStatusPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.ImagePath != "/public/Tony-id.png" {
		t.Errorf("expected image path preserved, got %s", p.ImagePath)
	}
}

func TestValidateClientMessage_ValidStart(t *testing.T) {
	msg := map[string]interface{}{
		"type":      TypeRecognitionStart,
		"payload":   map[string]interface{}{"intervalMs": 500},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(msg)

	result, err := ValidateClientMessage(data)
	if err != nil {
		t.Fatalf("expected valid message, got error: %v", err)
	}
	if result.Type != TypeRecognitionStart {
		t.Errorf("expected type %s, got %s", TypeRecognitionStart, result.Type)
	}
}

func TestValidateClientMessage_StartWithoutPayload(t *testing.T) {
	msg := map[string]interface{}{
		"type":      TypeRecognitionStart,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(msg)

	if _, err := ValidateClientMessage(data); err != nil {
		t.Fatalf("expected missing payload to default, got error: %v", err)
	}
}

func TestValidateClientMessage_NegativeInterval(t *testing.T) {
	msg := map[string]interface{}{
		"type":    TypeRecognitionStart,
		"payload": map[string]interface{}{"intervalMs": -1},
	}
	data, _ := json.Marshal(msg)

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestValidateClientMessage_NoArgTypes(t *testing.T) {
	for _, msgType := range []string{TypeRecognitionStop, TypeProfilesGet, TypeStatusGet} {
		msg := map[string]interface{}{
			"type":      msgType,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		}
		data, _ := json.Marshal(msg)

		if _, err := ValidateClientMessage(data); err != nil {
			t.Errorf("%s: expected valid, got error: %v", msgType, err)
		}
	}
}

func TestValidateClientMessage_InvalidJSON(t *testing.T) {
	if _, err := ValidateClientMessage([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateClientMessage_MissingType(t *testing.T) {
	data, _ := json.Marshal(map[string]interface{}{
		"payload": map[string]interface{}{},
	})

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestValidateClientMessage_UnknownType(t *testing.T) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "recognition.unknown",
	})

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateClientMessage_ServerTypeRejected(t *testing.T) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": TypeRecognitionStatus,
	})

	if _, err := ValidateClientMessage(data); err == nil {
		t.Fatal("expected server-originated type to be rejected from clients")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(ErrInvalidMessage, "bad envelope")
	if err != nil {
		t.Fatalf("NewErrorMessage failed: %v", err)
	}
	if msg.Type != TypeError {
		t.Errorf("expected type %s, got %s", TypeError, msg.Type)
	}

	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Code != ErrInvalidMessage || p.Message != "bad envelope" {
		t.Errorf("unexpected payload: %+v", p)
	}
}
