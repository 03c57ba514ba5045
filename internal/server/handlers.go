package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/m2tx/tutor_agent/internal/agent"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/m2tx/tutor_agent/internal/progress"
	"github.com/m2tx/tutor_agent/internal/repository"
)

const (
	senderUser      = "user"
	senderAssistant = "assistant"

	statusBuffer = 32

	// statusClientClosedRequest is the nginx convention for a client that
	// went away before the answer was ready.
	statusClientClosedRequest = 499
)

// Answerer answers one tutoring request.
type Answerer interface {
	Answer(ctx context.Context, req agent.Request, sink progress.Sink) (model.AgentResult, error)
}

// Handler serves the chat and history endpoints.
type Handler struct {
	tutor    Answerer
	sessions repository.SessionRepository
	logger   logging.Logger
}

func NewHandler(tutor Answerer, sessions repository.SessionRepository, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{tutor: tutor, sessions: sessions, logger: logger}
}

type chatRequest struct {
	UserID    string               `json:"user_id"`
	SessionID string               `json:"session_id"`
	Message   model.UserMessage    `json:"message"`
	History   []model.HistoryEntry `json:"history"`
	Language  string               `json:"language"`
	Stream    bool                 `json:"stream"`
}

type chatResponse struct {
	model.AgentResult
	SessionID string `json:"sessionId"`
}

// Chat answers a message, as JSON or as an SSE stream of status events
// followed by the result.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		badRequest(c, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Message.Text) == "" && len(req.Message.Media) == 0 {
		badRequest(c, "message must contain text or media")
		return
	}
	c.Set("user_id", req.UserID)

	ctx := c.Request.Context()
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	history := req.History
	if history == nil && h.sessions != nil {
		stored, err := h.sessions.Load(ctx, req.SessionID)
		if err != nil {
			h.logger.WithError(err).WithField("session_id", req.SessionID).Warn("Failed to load session history")
		}
		history = stored
	}

	tutorReq := agent.Request{
		UserID:   req.UserID,
		History:  history,
		Message:  req.Message,
		Language: req.Language,
	}

	if req.Stream {
		h.stream(c, req.SessionID, tutorReq)
		return
	}

	result, err := h.tutor.Answer(ctx, tutorReq, nil)
	if errors.Is(err, context.Canceled) {
		h.logger.WithField("user_id", req.UserID).Info("Client closed request")
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", req.UserID).Error("Chat request failed")
		c.JSON(errorStatus(err), gin.H{"success": false, "error": "failed to answer the message"})
		return
	}

	h.remember(ctx, req.SessionID, req.Message, result)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chatResponse{AgentResult: result, SessionID: req.SessionID}})
}

type answer struct {
	result model.AgentResult
	err    error
}

func (h *Handler) stream(c *gin.Context, sessionID string, req agent.Request) {
	ctx := c.Request.Context()
	sink := progress.NewChannelSink(statusBuffer)
	done := make(chan answer, 1)

	go func() {
		result, err := h.tutor.Answer(ctx, req, sink)
		done <- answer{result: result, err: err}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	chatStreamsActive.Inc()
	defer chatStreamsActive.Dec()

	for {
		select {
		case event := <-sink.Events():
			c.SSEvent("status_update", event)
			c.Writer.Flush()
		case out := <-done:
			drain(c, sink)
			if errors.Is(out.err, context.Canceled) {
				h.logger.WithField("user_id", req.UserID).Info("Client closed request")
				return
			}
			if out.err != nil {
				h.logger.WithError(out.err).WithField("user_id", req.UserID).Error("Chat stream failed")
				c.SSEvent("error", gin.H{"success": false, "error": "failed to answer the message"})
				c.Writer.Flush()
				return
			}
			h.remember(ctx, sessionID, req.Message, out.result)
			c.SSEvent("result", gin.H{"success": true, "data": chatResponse{AgentResult: out.result, SessionID: sessionID}})
			c.Writer.Flush()
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain writes status events still buffered when the answer arrives.
func drain(c *gin.Context, sink *progress.ChannelSink) {
	for {
		select {
		case event := <-sink.Events():
			c.SSEvent("status_update", event)
		default:
			return
		}
	}
}

func (h *Handler) remember(ctx context.Context, sessionID string, msg model.UserMessage, result model.AgentResult) {
	if h.sessions == nil {
		return
	}
	err := h.sessions.Append(ctx, sessionID,
		model.HistoryEntry{Sender: senderUser, Text: msg.Text, Media: msg.Media},
		model.HistoryEntry{Sender: senderAssistant, Text: result.ResponseText},
	)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to store session history")
	}
}

// GetHistory returns the stored history of a session.
func (h *Handler) GetHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		badRequest(c, "session_id is required")
		return
	}
	if h.sessions == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []model.HistoryEntry{}})
		return
	}

	history, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load session"})
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": history})
}

// DeleteHistory clears the stored history of a session.
func (h *Handler) DeleteHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		badRequest(c, "session_id is required")
		return
	}
	if h.sessions != nil {
		if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
			h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to delete session")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to delete session"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

// errorStatus maps an answering failure to a status code. Failures reaching
// the reasoning service or the index are upstream errors.
func errorStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
