package session

import (
	"encoding/json"

	"github.com/inamate/diagram/internal/document"
)

type Message struct {
	Type      string          `json:"type"`
	DiagramID string          `json:"diagramId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// IntentPrefix marks inbound commands: "intent.drag", "intent.undo", ...
	IntentPrefix = "intent."

	TypeWelcome = "welcome"
	TypeScene   = "scene"
	TypeError   = "error"
)

// ScenePayload is the render snapshot sent after every change.
type ScenePayload struct {
	Scene   document.SceneView `json:"scene"`
	CanUndo bool               `json:"canUndo"`
	CanRedo bool               `json:"canRedo"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	ScenePayload
}

type ErrorPayload struct {
	Message     string `json:"message"`
	RequestType string `json:"requestType,omitempty"`
}

func newMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: data}, nil
}

func errorMessage(requestType, text string) *Message {
	data, _ := json.Marshal(ErrorPayload{Message: text, RequestType: requestType})
	return &Message{Type: TypeError, Payload: data}
}
