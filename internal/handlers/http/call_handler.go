package http

import (
	"context"
	"errors"
	"net/http"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
	apperrors "callnet/pkg/errors"
	"callnet/pkg/validation"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
)

// CallHandler is the REST surface over the signaling core. Clients that hold
// a websocket drive calls over it; this API serves dashboards, tooling, and
// clients that only need to initiate or inspect.
type CallHandler struct {
	signaling  ports.SignalingService
	registry   ports.SocketRegistry
	iceServers []webrtc.ICEServer
}

func NewCallHandler(signaling ports.SignalingService, registry ports.SocketRegistry, iceServers []webrtc.ICEServer) *CallHandler {
	return &CallHandler{
		signaling:  signaling,
		registry:   registry,
		iceServers: iceServers,
	}
}

var _ ports.HTTPHandler = (*CallHandler)(nil)

func (h *CallHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/calls", h.InitiateCall)
		api.POST("/calls/:id/answer", h.AnswerCall)
		api.POST("/calls/:id/reject", h.RejectCall)
		api.POST("/calls/:id/end", h.EndCall)
		api.GET("/calls/:id", h.GetCallStatus)
		api.GET("/calls", h.ListActiveCalls)

		api.GET("/webrtc/ice-servers", h.GetICEServers)
	}
}

type InitiateCallRequest struct {
	Callee   string `json:"callee" binding:"required"`
	CallType string `json:"call_type" binding:"required"`
}

func (h *CallHandler) InitiateCall(c *gin.Context) {
	caller, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req InitiateCallRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateUserID(req.Callee); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateCallType(req.CallType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.signaling.Initiate(c.Request.Context(), caller, domain.UserID(req.Callee), domain.CallType(req.CallType))
	if err != nil {
		respondError(c, err)
		return
	}

	// The callee may be offline; the call still rings until the timeout,
	// but the caller learns reachability up front.
	c.JSON(http.StatusCreated, gin.H{
		"call_id":       sess.ID,
		"status":        sess.Status,
		"callee_online": len(h.registry.Resolve(sess.Callee)) > 0,
	})
}

func (h *CallHandler) AnswerCall(c *gin.Context) {
	h.transition(c, h.signaling.Answer)
}

func (h *CallHandler) RejectCall(c *gin.Context) {
	h.transition(c, h.signaling.Reject)
}

func (h *CallHandler) EndCall(c *gin.Context) {
	h.transition(c, h.signaling.End)
}

func (h *CallHandler) GetCallStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	callID := c.Param("id")
	if err := validation.ValidateCallID(callID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.signaling.GetStatus(c.Request.Context(), domain.CallID(callID), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": summary})
}

func (h *CallHandler) ListActiveCalls(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	summaries, err := h.signaling.ListActiveCalls(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"calls": summaries})
}

// GetICEServers hands clients the STUN/TURN set they need to build their
// peer connection configuration.
func (h *CallHandler) GetICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": h.iceServers})
}

func (h *CallHandler) transition(c *gin.Context, op func(ctx context.Context, id domain.CallID, actor domain.UserID) error) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	callID := c.Param("id")
	if err := validation.ValidateCallID(callID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := op(c.Request.Context(), domain.CallID(callID), actor); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func actorFromContext(c *gin.Context) (domain.UserID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	userID, ok := userIDVal.(domain.UserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user context"})
		return "", false
	}
	return userID, true
}

// respondError maps domain sentinels onto the shared error vocabulary.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		appErr = apperrors.NewInvalidArgumentError(err.Error())
	case errors.Is(err, domain.ErrCallNotFound):
		appErr = apperrors.NewNotFoundError("call")
	case errors.Is(err, domain.ErrForbidden):
		appErr = apperrors.NewForbiddenError(err.Error())
	case errors.Is(err, domain.ErrAlreadyInCall):
		appErr = apperrors.NewAlreadyInCallError(err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		appErr = apperrors.NewInvalidTransitionError(err.Error())
	case errors.Is(err, domain.ErrDeliveryFailed):
		appErr = apperrors.NewDeliveryFailedError(err.Error())
	default:
		appErr = apperrors.NewInternalError("internal error")
	}

	c.JSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
