package ws

import (
	"gowalink/internal/service"
	"gowalink/internal/session"
)

// Gateway subscribes to the session manager and republishes its events to
// the realtime hub and, when configured, the outbound webhook.
type Gateway struct {
	pub  RealtimePublisher
	hook *service.WebhookSender
}

func NewGateway(pub RealtimePublisher, hook *service.WebhookSender) *Gateway {
	return &Gateway{pub: pub, hook: hook}
}

// Attach registers the gateway on the manager and returns the handler id.
func (g *Gateway) Attach(m *session.Manager) uint32 {
	return m.AddEventHandler(g.handle)
}

func (g *Gateway) handle(evt interface{}) {
	switch e := evt.(type) {
	case session.StateChangedEvent:
		g.publish(EventStateChanged, e.SessionID, map[string]interface{}{
			"userId": e.UserID,
			"from":   e.From,
			"to":     e.To,
		})
	case session.QREvent:
		g.publish(EventQR, e.SessionID, map[string]interface{}{
			"qr": e.DataURI,
		})
	case session.PairingCodeEvent:
		g.publish(EventPairingCode, e.SessionID, map[string]interface{}{
			"code": e.Code,
		})
	case session.AuthenticatedEvent:
		g.publish(EventAuthOK, e.SessionID, nil)
	case session.ReadyEvent:
		g.publish(EventReady, e.SessionID, map[string]interface{}{
			"phoneNumber": e.PhoneNumber,
			"pushName":    e.PushName,
		})
	case session.DisconnectedEvent:
		g.publish(EventDisconnected, e.SessionID, map[string]interface{}{
			"reason":  e.Reason,
			"attempt": e.Attempt,
		})
	case session.ErrorEvent:
		g.publish(EventError, e.SessionID, map[string]interface{}{
			"error": e.Reason,
		})
	case session.MessageEvent:
		g.publish(EventMessage, e.SessionID, e.Message)
	}
}

func (g *Gateway) publish(event, sessionID string, data interface{}) {
	if g.pub != nil {
		g.pub.Publish(WsEvent{Event: event, SessionID: sessionID, Data: data})
	}
	if g.hook != nil {
		g.hook.Send(event, map[string]interface{}{
			"sessionId": sessionID,
			"payload":   data,
		})
	}
}
