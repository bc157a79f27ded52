package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sudorandom/gapdash/pkg/metrics"
	"github.com/sudorandom/gapdash/pkg/reactive"
)

const (
	msgHello  = "hello"
	msgSet    = "set"
	msgUpdate = "update"
	msgError  = "error"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientMessage is sent by the page when a control changes.
type ClientMessage struct {
	Type   string            `json:"type"`
	Inputs map[string]string `json:"inputs"`
}

// ServerMessage carries the session state and any recomputed outputs.
type ServerMessage struct {
	Type    string                    `json:"type"`
	Session string                    `json:"session,omitempty"`
	Values  map[reactive.Input]string `json:"values,omitempty"`
	Changed []reactive.Input          `json:"changed,omitempty"`
	Cleared []reactive.Input          `json:"cleared,omitempty"`
	Results []reactive.Result         `json:"results,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func (h *Handler) wsHandler(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		h.writeJSONError(w, http.StatusBadRequest, "websocket upgrade required")
		return
	}
	sess, resumed, err := h.sessions.Resume(r.URL.Query().Get("session"))
	if err != nil {
		h.log.Error("failed to open session", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.cfg.MaxMessageSize)

	log := h.log.With("session", sess.id, "remote", r.RemoteAddr)
	log.Debug("websocket connected", "resumed", resumed)
	if !resumed {
		continent := h.cfg.Locator.Continent(r.RemoteAddr)
		if continent == "" {
			continent = "unknown"
		}
		metrics.Visitors.WithLabelValues(continent).Inc()
	}

	sess.mu.Lock()
	u, err := sess.rc.RenderAll()
	values := sess.rc.State().Values()
	sess.mu.Unlock()
	hello := ServerMessage{Type: msgHello, Session: sess.id, Values: values}
	if err != nil {
		hello.Error = err.Error()
	} else {
		hello.Results = u.Results
	}
	if err := send(conn, hello); err != nil {
		log.Debug("failed to send hello", "error", err)
		return
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug("websocket read failed", "error", err)
			}
			return
		}
		metrics.WebsocketMessages.WithLabelValues("in", messageLabel(msg.Type)).Inc()

		reply := h.handleMessage(sess, msg)
		if err := send(conn, reply); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (h *Handler) handleMessage(sess *session, msg ClientMessage) ServerMessage {
	if msg.Type != msgSet {
		return ServerMessage{Type: msgError, Error: "unknown message type " + msg.Type}
	}
	changes := make(map[reactive.Input]string, len(msg.Inputs))
	for k, v := range msg.Inputs {
		changes[reactive.Input(k)] = v
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	u, err := sess.rc.Set(changes)
	if err != nil {
		return ServerMessage{Type: msgError, Error: err.Error(), Values: sess.rc.State().Values()}
	}
	return ServerMessage{
		Type:    msgUpdate,
		Values:  u.State.Values(),
		Changed: u.Changed,
		Cleared: u.Cleared,
		Results: u.Results,
	}
}

// messageLabel keeps client supplied types out of the metric labels.
func messageLabel(typ string) string {
	if typ == msgSet {
		return typ
	}
	return "unknown"
}

func send(conn *websocket.Conn, msg ServerMessage) error {
	metrics.WebsocketMessages.WithLabelValues("out", msg.Type).Inc()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
