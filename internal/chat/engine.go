// Package chat orchestrates one request-response cycle: session
// checks, throttling, retrieval, prompt assembly, completion, and
// history append.
package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/events"
	"github.com/hireloop/portalchat/internal/llm"
	"github.com/hireloop/portalchat/internal/retrieval"
	"github.com/hireloop/portalchat/internal/safety"
	"github.com/hireloop/portalchat/internal/session"
)

// Retriever is the slice of the retrieval engine the chat engine needs.
type Retriever interface {
	Retrieve(ctx context.Context, subjectID, query string) (*retrieval.Result, error)
}

// Options tune the engine.
type Options struct {
	HistoryTurns int // turns of prior conversation included in the prompt
	MaxTokens    int
	Temperature  float64
}

// Request is one inbound visitor message. SessionID may be empty, in
// which case a session is created for the subject first.
type Request struct {
	SubjectID string
	SessionID string
	VisitorID string
	Message   string
}

// RateLimitInfo tells the caller how much budget the session has left.
type RateLimitInfo struct {
	Remaining int
	ResetAt   time.Time
}

// Response is the answer returned to the endpoint layer. Degraded is
// set when the language model failed and Text is the fixed fallback;
// the caller can surface that to monitoring without alarming the visitor.
type Response struct {
	SessionID     string
	Text          string
	Sources       []string
	Confidence    float64
	LowConfidence bool
	Degraded      bool
	RateLimit     RateLimitInfo
}

// Engine drives the full cycle for each message.
type Engine struct {
	sessions  *session.Manager
	retriever Retriever
	provider  llm.Provider
	sanitizer *safety.Sanitizer
	limiter   *safety.Limiter
	sink      events.Sink
	opts      Options
}

// NewEngine wires the collaborators together. sink may be a NopSink.
func NewEngine(sessions *session.Manager, retriever Retriever, provider llm.Provider,
	sanitizer *safety.Sanitizer, limiter *safety.Limiter, sink events.Sink, opts Options) *Engine {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 10
	}
	return &Engine{
		sessions:  sessions,
		retriever: retriever,
		provider:  provider,
		sanitizer: sanitizer,
		limiter:   limiter,
		sink:      sink,
		opts:      opts,
	}
}

// CreateSession opens a session for a subject.
func (e *Engine) CreateSession(ctx context.Context, subjectID, visitorID string) (*session.Session, error) {
	sess, err := e.sessions.Create(ctx, subjectID, visitorID)
	if err != nil {
		return nil, err
	}
	e.sink.Record(ctx, events.Event{
		Type:      events.TypeSessionCreated,
		SubjectID: subjectID,
		SessionID: sess.ID,
		VisitorID: visitorID,
	})
	return sess, nil
}

// History returns a session's full turn list.
func (e *Engine) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	return e.sessions.History(ctx, sessionID)
}

// EndSession closes a session and drops its rate-limit state.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	if err := e.sessions.End(ctx, sessionID); err != nil {
		return err
	}
	e.limiter.Forget(sessionID)
	e.sink.Record(ctx, events.Event{Type: events.TypeSessionEnded, SessionID: sessionID})
	return nil
}

// SendMessage handles one visitor message end to end. Throttle and
// input rejections return coded errors before retrieval runs; language
// model failures degrade to a fallback answer instead of failing the
// request.
func (e *Engine) SendMessage(ctx context.Context, req Request) (*Response, error) {
	sess, err := e.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	decision := e.limiter.Allow(sess.ID)
	if !decision.Allowed {
		e.sink.Record(ctx, events.Event{
			Type:      events.TypeThrottled,
			SubjectID: sess.SubjectID,
			SessionID: sess.ID,
			VisitorID: req.VisitorID,
		})
		return nil, apperr.RateLimited(decision.RetryAfter)
	}

	message, err := e.sanitizer.Sanitize(req.Message)
	if err != nil {
		e.sink.Record(ctx, events.Event{
			Type:      events.TypeRejected,
			SubjectID: sess.SubjectID,
			SessionID: sess.ID,
			VisitorID: req.VisitorID,
			Detail:    string(apperr.CodeOf(err)),
		})
		return nil, err
	}

	result, err := e.retriever.Retrieve(ctx, sess.SubjectID, message)
	if err != nil {
		return nil, err
	}

	history, err := e.sessions.RecentTurns(ctx, sess.ID, e.opts.HistoryTurns)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		SessionID:     sess.ID,
		LowConfidence: result.LowConfidence,
		RateLimit: RateLimitInfo{
			Remaining: decision.Remaining,
			ResetAt:   decision.ResetAt,
		},
	}

	completion, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    buildPrompt(result.Context, result.LowConfidence, history, message),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	switch {
	case err != nil:
		log.Printf("chat: completion failed for session %s: %v", sess.ID, err)
		e.sink.Record(ctx, events.Event{
			Type:      events.TypeProviderError,
			SubjectID: sess.SubjectID,
			SessionID: sess.ID,
			Detail:    string(apperr.CodeOf(err)),
		})
		resp.Text = fallbackText
		resp.Degraded = true
	case !safety.ScanOutput(completion.Content):
		log.Printf("chat: completion for session %s failed output scan", sess.ID)
		resp.Text = fallbackText
		resp.Degraded = true
	default:
		resp.Text = completion.Content
		if !result.LowConfidence {
			resp.Sources = result.Sources
			resp.Confidence = result.TopScore
		}
	}

	confidence := resp.Confidence
	err = e.sessions.AppendExchange(ctx, sess.ID,
		session.Turn{Content: message},
		session.Turn{Content: resp.Text, Sources: resp.Sources, Confidence: &confidence})
	if err != nil {
		return nil, fmt.Errorf("recording exchange: %w", err)
	}

	e.sink.Record(ctx, events.Event{
		Type:      events.TypeMessageSent,
		SubjectID: sess.SubjectID,
		SessionID: sess.ID,
		VisitorID: req.VisitorID,
	})
	return resp, nil
}

// resolveSession loads the session named in the request, or creates one
// when the request carries none.
func (e *Engine) resolveSession(ctx context.Context, req Request) (*session.Session, error) {
	if req.SessionID == "" {
		if req.SubjectID == "" {
			return nil, apperr.New(apperr.CodeRejectedInput, "subject id is required", nil)
		}
		return e.CreateSession(ctx, req.SubjectID, req.VisitorID)
	}

	sess, err := e.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.SubjectID != "" && req.SubjectID != sess.SubjectID {
		return nil, apperr.New(apperr.CodeInvalidState, "session belongs to a different subject", nil)
	}
	return sess, nil
}

var _ Retriever = (*retrieval.Engine)(nil)
