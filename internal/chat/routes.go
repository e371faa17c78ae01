package chat

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hireloop/portalchat/internal/apperr"
)

// RegisterRoutes mounts chat endpoints under /api/chat on the given router.
func RegisterRoutes(r chi.Router, engine *Engine) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/message", handleMessage(engine))
		r.Post("/sessions", handleCreateSession(engine))
		r.Get("/sessions/{id}/history", handleHistory(engine))
		r.Delete("/sessions/{id}", handleEndSession(engine))
		r.Get("/ws", handleWebSocket(engine))
	})
}

type messageRequest struct {
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id,omitempty"`
	VisitorID string `json:"visitor_id,omitempty"`
	Message   string `json:"message"`
}

type rateLimitPayload struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type messageResponse struct {
	SessionID     string           `json:"session_id"`
	Text          string           `json:"text"`
	Sources       []string         `json:"sources"`
	Confidence    float64          `json:"confidence"`
	LowConfidence bool             `json:"low_confidence"`
	Degraded      bool             `json:"degraded,omitempty"`
	RateLimit     rateLimitPayload `json:"rate_limiting"`
}

func handleMessage(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.New(apperr.CodeRejectedInput, "invalid request body", err))
			return
		}

		resp, err := engine.SendMessage(r.Context(), Request{
			SubjectID: req.SubjectID,
			SessionID: req.SessionID,
			VisitorID: visitorID(r, req.VisitorID),
			Message:   req.Message,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{
			SessionID:     resp.SessionID,
			Text:          resp.Text,
			Sources:       sourcesOrEmpty(resp.Sources),
			Confidence:    resp.Confidence,
			LowConfidence: resp.LowConfidence,
			Degraded:      resp.Degraded,
			RateLimit: rateLimitPayload{
				Remaining: resp.RateLimit.Remaining,
				ResetAt:   resp.RateLimit.ResetAt,
			},
		})
	}
}

type createSessionRequest struct {
	SubjectID string `json:"subject_id"`
	VisitorID string `json:"visitor_id,omitempty"`
}

func handleCreateSession(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.New(apperr.CodeRejectedInput, "invalid request body", err))
			return
		}

		sess, err := engine.CreateSession(r.Context(), req.SubjectID, visitorID(r, req.VisitorID))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
	}
}

type turnPayload struct {
	Seq        int       `json:"seq"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Sources    []string  `json:"sources,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func handleHistory(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		turns, err := engine.History(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		payload := make([]turnPayload, 0, len(turns))
		for _, t := range turns {
			payload = append(payload, turnPayload{
				Seq:        t.Seq,
				Role:       string(t.Role),
				Content:    t.Content,
				Sources:    t.Sources,
				Confidence: t.Confidence,
				CreatedAt:  t.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string][]turnPayload{"turns": payload})
	}
}

func handleEndSession(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.EndSession(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// visitorID prefers the explicit field and falls back to the remote
// address, so anonymous visitors still count against session caps.
func visitorID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return r.RemoteAddr
}

func sourcesOrEmpty(sources []string) []string {
	if sources == nil {
		return []string{}
	}
	return sources
}

// errorPayload is the only error shape visitors ever see: a taxonomy
// code plus a safe message, never provider internals.
type errorPayload struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	payload := errorPayload{Error: safeMessage(err), Code: string(code)}
	if code == apperr.CodeRateLimited {
		if retryAfter := apperr.RetryAfterOf(err); retryAfter > 0 {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			payload.RetryAfter = seconds
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	}
	writeJSON(w, status, payload)
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeRejectedInput, apperr.CodeInvalidContent:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeExpired:
		return http.StatusGone
	case apperr.CodeInvalidState:
		return http.StatusConflict
	case apperr.CodeRateLimited, apperr.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.CodeEmbeddingProvider, apperr.CodeGenerationProvider, apperr.CodeModelMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// safeMessage returns the user-facing message of a coded error, or a
// generic line for anything uncoded.
func safeMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
