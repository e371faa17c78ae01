package chat

import (
	"encoding/json"
	"log"
	"math"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hireloop/portalchat/internal/apperr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id"` // empty for new sessions
	VisitorID string `json:"visitor_id"`
	Message   string `json:"message"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type          string   `json:"type"` // "response" or "error"
	SessionID     string   `json:"session_id,omitempty"`
	Text          string   `json:"text,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
	Degraded      bool     `json:"degraded,omitempty"`
	Code          string   `json:"code,omitempty"`
	RetryAfter    int      `json:"retry_after_seconds,omitempty"`
}

// handleWebSocket serves a persistent chat connection speaking the same
// engine as the HTTP endpoint. One request-response exchange per frame.
func handleWebSocket(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("chat: websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("chat: websocket read: %v", err)
				}
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				sendWSError(conn, "", apperr.New(apperr.CodeRejectedInput, "invalid message format", err))
				continue
			}

			resp, err := engine.SendMessage(r.Context(), Request{
				SubjectID: req.SubjectID,
				SessionID: req.SessionID,
				VisitorID: visitorID(r, req.VisitorID),
				Message:   req.Message,
			})
			if err != nil {
				sendWSError(conn, req.SessionID, err)
				continue
			}

			out := wsResponse{
				Type:          "response",
				SessionID:     resp.SessionID,
				Text:          resp.Text,
				Sources:       resp.Sources,
				Confidence:    resp.Confidence,
				LowConfidence: resp.LowConfidence,
				Degraded:      resp.Degraded,
			}
			if err := conn.WriteJSON(out); err != nil {
				log.Printf("chat: websocket write: %v", err)
				return
			}
		}
	}
}

func sendWSError(conn *websocket.Conn, sessionID string, err error) {
	out := wsResponse{
		Type:      "error",
		SessionID: sessionID,
		Text:      safeMessage(err),
		Code:      string(apperr.CodeOf(err)),
	}
	if retryAfter := apperr.RetryAfterOf(err); retryAfter > 0 {
		out.RetryAfter = int(math.Ceil(retryAfter.Seconds()))
	}
	if writeErr := conn.WriteJSON(out); writeErr != nil {
		log.Printf("chat: websocket write: %v", writeErr)
	}
}
