package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-engine/internal/handler/dto"
	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
	"github.com/yourusername/quiz-engine/internal/service"
)

// UserHandler обрабатывает запросы, связанные с пользователями
type UserHandler struct {
	userService         *service.UserService
	notificationService *service.NotificationService
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(userService *service.UserService, notificationService *service.NotificationService) *UserHandler {
	return &UserHandler{
		userService:         userService,
		notificationService: notificationService,
	}
}

// GetMe возвращает игровые показатели текущего пользователя
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, "UserHandler", apperrors.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "UserHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserProfileResponse(user))
}

// GetImprovementAreas возвращает темы, в которых пользователь чаще ошибается
func (h *UserHandler) GetImprovementAreas(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, "UserHandler", apperrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	areas, err := h.userService.GetImprovementAreas(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, "UserHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": dto.NewImprovementAreaList(areas)})
}

// GetNotifications возвращает последние уведомления пользователя
func (h *UserHandler) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, "UserHandler", apperrors.ErrUnauthorized)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	items, err := h.notificationService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, "UserHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": dto.NewNotificationList(items)})
}
