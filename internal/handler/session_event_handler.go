package handler

import (
	"context"

	"strive-chatbot-be/internal/pkg/logger"
	internalWS "strive-chatbot-be/internal/websocket"
	"strive-chatbot-be/pkg/events"
)

const sessionEventModule = "SessionEventHandler"

// SessionEventHandler pushes conversation lifecycle events to the websocket
// clients of the session they belong to.
//
// With NATS enabled it is registered as the subscriber handler for
// events.conversation.>; without NATS it is the events.Emitter itself.
type SessionEventHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewSessionEventHandler(hub *internalWS.Hub, log logger.ILogger) *SessionEventHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SessionEventHandler{hub: hub, logger: log}
}

// Handle forwards one event. Events without a session are ignored.
func (h *SessionEventHandler) Handle(ctx context.Context, event events.Event) error {
	var target struct {
		SessionId string `json:"session_id"`
	}
	if err := events.Decode(event, &target); err != nil || target.SessionId == "" {
		h.logger.Debug(sessionEventModule, "Ignoring event without session", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}
	h.hub.Send(ctx, target.SessionId, event.EventType(), event.Payload())
	return nil
}

// Publish lets the handler stand in for the NATS publisher.
func (h *SessionEventHandler) Publish(ctx context.Context, event events.Event) error {
	return h.Handle(ctx, event)
}
