package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/handler"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/service/notification"
	apperrors "github.com/loleg/couchers/pkg/errors"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("topic_action", func(fl validator.FieldLevel) bool {
			_, err := model.ParseTopicAction(fl.Field().String())
			return err == nil
		})
	}
}

type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.Raise)
}

// RegisterPublicRoutes mounts the routes reachable without a service
// token; unsubscribe links land here straight from emails.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/unsubscribe", h.Unsubscribe)
}

type raiseRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	TopicAction string `json:"topic_action" binding:"required,topic_action"`
	Key         string `json:"key" binding:"required"`
	PayloadRef  string `json:"payload_ref"`
}

func (h *Handler) Raise(c *gin.Context) {
	var req raiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user_id"))
		return
	}
	ta, err := model.ParseTopicAction(req.TopicAction)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	id, err := h.svc.Raise(c.Request.Context(), userID, ta, req.Key, req.PayloadRef)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.Code(err) == apperrors.ErrBadRequest {
			status = http.StatusBadRequest
		}
		c.JSON(status, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"id": id}))
}

type unsubscribeRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Also accept the token as a query param so the link in the
		// email body works directly.
		req.Token = c.Query("token")
		if req.Token == "" {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("token is required"))
			return
		}
	}

	if err := h.svc.Unsubscribe(c.Request.Context(), req.Token); err != nil {
		status := http.StatusInternalServerError
		switch apperrors.Code(err) {
		case apperrors.ErrBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrNotFound:
			status = http.StatusNotFound
		}
		c.JSON(status, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unsubscribed": true}))
}
