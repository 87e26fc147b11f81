package handler

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hirewise/examroom-backend/internal/middleware"
	"github.com/hirewise/examroom-backend/internal/service"
	"github.com/hirewise/examroom-backend/internal/session"
	ws "github.com/hirewise/examroom-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes: the tick forwarder and the read loop both send
// on the same connection, and gorilla/websocket allows one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws.WriteError(w.conn, msg)
}

// WSHandler streams a live exam session over WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/portal/session/stream
// Streams countdown ticks and terminal events, and accepts answer, navigate,
// submit, and ping actions over the same connection.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	candidateID := claims.UserID

	// The session must exist before the stream attaches.
	status, err := h.sessionService.Status(candidateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}

	wsLog := h.log.With().
		Int("candidate_id", candidateID).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	// Initial state so the client can render without a separate fetch.
	wc.write(ws.StateResponse{Event: ws.EventState, Status: status})

	events, err := h.sessionService.Subscribe(candidateID)
	if err != nil {
		wc.writeError("no active session")
		return
	}
	defer h.sessionService.Unsubscribe(candidateID, events)

	// Forward session events until the channel closes (session ended).
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case "tick":
				wc.write(ws.TickResponse{
					Event:            ws.EventTick,
					RemainingSeconds: ev.RemainingSeconds,
					RemainingDisplay: ev.RemainingDisplay,
				})
			case "submitted":
				wc.write(ws.SubmittedResponse{Event: ws.EventSubmitted})
			case "submit_failed":
				wc.write(ws.SubmittedResponse{Event: ws.EventSubmitFailed})
			case "aborted":
				wc.write(ws.SubmittedResponse{Event: ws.EventAborted})
			}
		}
	}()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(wc, candidateID, &msg)
		case ws.ActionNavigate:
			h.handleNavigate(wc, candidateID, &msg)
		case ws.ActionSubmit:
			if err := h.sessionService.SubmitSession(c.Request.Context(), candidateID); err != nil {
				wc.writeError(err.Error())
			}
		case ws.ActionPing:
			wc.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			wc.writeError("unknown action: " + string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(wc *wsConn, candidateID int, msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		wc.writeError("invalid question_id format")
		return
	}

	if _, err := h.sessionService.Answer(candidateID, questionID, msg.Answer); err != nil {
		wc.writeError(err.Error())
		return
	}

	status, err := h.sessionService.Status(candidateID)
	if err != nil {
		return
	}
	wc.write(ws.StateResponse{Event: ws.EventState, Status: status})
}

func (h *WSHandler) handleNavigate(wc *wsConn, candidateID int, msg *ws.RequestPayload) {
	dir := session.DirectionNext
	if msg.Direction == "previous" {
		dir = session.DirectionPrevious
	}

	status, err := h.sessionService.Navigate(candidateID, dir)
	if err != nil {
		wc.writeError(err.Error())
		return
	}
	wc.write(ws.StateResponse{Event: ws.EventState, Status: status})
}
