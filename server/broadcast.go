package server

import (
	"encoding/json"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/snapshot"
)

// Message types pushed over the websocket.
const (
	MessageSnapshot = "snapshot"
	MessageAlert    = "alert"
)

// Message is the envelope for every websocket push.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NotifySnapshot pushes a freshly persisted snapshot to every
// connected client. It satisfies pulse.Broadcaster.
func (s *Server) NotifySnapshot(snap *snapshot.Snapshot) {
	s.push(Message{Type: MessageSnapshot, Payload: snap})
}

// NotifyAlert pushes an alert state change. It satisfies
// alert.Notifier.
func (s *Server) NotifyAlert(ev alert.Event) {
	s.push(Message{Type: MessageAlert, Payload: ev})
}

func (s *Server) push(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Errorw("marshaling broadcast message", logger.FieldError, err)
		return
	}
	select {
	case s.hub.broadcast <- data:
	default:
		logger.Warnw("broadcast queue full, dropping message", "type", m.Type)
	}
}
