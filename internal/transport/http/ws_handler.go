package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/backend"
	"quiz-attempt-service/internal/platform/logger"
)

// SessionClient resolves the caller's session and verification state.
type SessionClient interface {
	Profile(ctx context.Context) (domain.SessionStatus, error)
	ResendVerification(ctx context.Context) error
}

type WSHandler struct {
	service  *app.AttemptService
	sessions SessionClient
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, sessions SessionClient, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service:  service,
		sessions: sessions,
		logger:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string           `json:"message"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
}

type noticePayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one attempt of ?quizId= for the caller.
// The attempt is abandoned when the connection closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := strings.TrimSpace(r.URL.Query().Get("quizId"))
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	ctx := backend.WithToken(r.Context(), credentials(r))
	status, err := h.sessions.Profile(ctx)
	switch {
	case errors.Is(err, domain.ErrVerificationRequired):
		// the gate turns this into the verification interrupt
		status = domain.SessionStatus{IsVerified: false}
	case err != nil:
		h.logger.Warn("profile lookup failed", "quiz_id", quizID, "error", err)
		http.Error(w, "unable to resolve session", statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	attemptCtx, abandon := context.WithCancel(ctx)
	defer abandon()

	runner, err := h.service.Start(attemptCtx, quizID, status.UserID, attempt.StaticStatus(status))
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	snapshots, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwardDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "attempt_id", runner.ID(), "error", err)
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(forwardDone)
		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.dispatch(ctx, runner, inbound); ok {
			emit(reply)
		}
	}

	close(closeSignals)
	<-forwardDone
	close(send)
	<-writerDone
}

// dispatch applies one client message. Successful commands reply through the
// state stream, so only errors and notices produce a direct reply.
func (h *WSHandler) dispatch(ctx context.Context, runner *attempt.Runner, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errorPayload{Message: "invalid answer payload"}), true
		}
		err = runner.Answer(ctx, payload.QuestionIndex, payload.OptionIndex)
	case "next":
		err = runner.Next(ctx)
	case "previous":
		err = runner.Previous(ctx)
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errorPayload{Message: "invalid jump payload"}), true
		}
		err = runner.JumpTo(ctx, payload.Index)
	case "submit":
		err = runner.Submit(ctx)
	case "resendVerification":
		if err := h.sessions.ResendVerification(ctx); err != nil {
			h.logger.Warn("resend verification failed", "attempt_id", runner.ID(), "error", err)
			return errorMessage(toErrorPayload(err)), true
		}
		return outboundMessage[any]{Type: "verificationSent", Payload: noticePayload{Message: "Verification email sent"}}, true
	default:
		return errorMessage(errorPayload{Message: "unsupported message type"}), true
	}
	if err != nil {
		return errorMessage(toErrorPayload(err)), true
	}
	return outboundMessage[any]{}, false
}

func errorMessage(p errorPayload) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: p}
}

func toErrorPayload(err error) errorPayload {
	switch {
	case errors.Is(err, domain.ErrNotInProgress), errors.Is(err, domain.ErrInvalidAnswer), errors.Is(err, domain.ErrAttemptClosed):
		return errorPayload{Message: err.Error()}
	}
	return errorPayload{Message: err.Error(), Kind: domain.Classify(err)}
}

// credentials reads the bearer token from the Authorization header or the token cookie.
func credentials(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func statusFor(err error) int {
	var nerr *domain.NetworkError
	if errors.As(err, &nerr) && (nerr.StatusCode == http.StatusUnauthorized || nerr.StatusCode == http.StatusForbidden) {
		return nerr.StatusCode
	}
	return http.StatusBadGateway
}
