package preference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loleg/couchers/internal/handler"
	"github.com/loleg/couchers/internal/model"
	"github.com/loleg/couchers/internal/repository"
	"github.com/loleg/couchers/internal/service/preference"
	apperrors "github.com/loleg/couchers/pkg/errors"
)

type Handler struct {
	svc   *preference.Service
	store repository.Store
}

func NewHandler(svc *preference.Service, store repository.Store) *Handler {
	return &Handler{svc: svc, store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prefs := r.Group("/users/:id/preferences")
	{
		prefs.GET("", h.List)
		prefs.PUT("", h.Set)
	}
}

func (h *Handler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	overrides, err := h.svc.Overrides(c.Request.Context(), h.store.Querier(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(overrides))
}

type setRequest struct {
	TopicAction  string `json:"topic_action" binding:"required,topic_action"`
	DeliveryType string `json:"delivery_type" binding:"required"`
	Deliver      *bool  `json:"deliver" binding:"required"`
}

func (h *Handler) Set(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ta, err := model.ParseTopicAction(req.TopicAction)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	err = h.svc.Set(c.Request.Context(), h.store.Querier(), userID, ta,
		model.DeliveryType(req.DeliveryType), *req.Deliver)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.Code(err) == apperrors.ErrBadRequest {
			status = http.StatusBadRequest
		}
		c.JSON(status, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
