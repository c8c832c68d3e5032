package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"facility-notify/internal/models"
	"facility-notify/pkg/email"
)

const defaultFetchLimit = 100

// NotificationStore is the slice of the database layer the notification
// handlers need.
type NotificationStore interface {
	FetchRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Directory manages accounts and staff profiles.
type Directory interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
	CreateAccount(ctx context.Context, id, email, passwordHash string) error
	UpsertUser(ctx context.Context, u models.User) error
}

// Mailer relays task assignment emails.
type Mailer interface {
	Send(ctx context.Context, p email.Params) error
}

type Handler struct {
	store     NotificationStore
	directory Directory
	mailer    Mailer
	logger    *logrus.Logger
}

func NewHandler(store NotificationStore, directory Directory, mailer Mailer, logger *logrus.Logger) *Handler {
	return &Handler{store: store, directory: directory, mailer: mailer, logger: logger}
}

// GetNotificationsByUserID returns the user's recent notifications,
// broadcasts included, most recent first.
func (h *Handler) GetNotificationsByUserID(c *gin.Context) {
	userID := c.Param("user_id")
	limit := defaultFetchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.logger.Errorf("Invalid limit %q: %v", raw, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	notifications, err := h.store.FetchRecent(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Errorf("Failed to get notifications for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	h.logger.Infof("Retrieved %d notifications for user %s", len(notifications), userID)
	c.JSON(http.StatusOK, notifications)
}

// GetUnreadCount returns the user's unread total.
func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID := c.Param("user_id")
	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("Failed to get unread count for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get unread count"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead marks one notification read. Marking an already
// read notification succeeds without changes.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.MarkRead(c.Request.Context(), id); err != nil {
		h.logger.Errorf("Failed to mark notification %s read: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
		return
	}
	h.logger.Infof("Marked notification %s read", id)
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked read"})
}

// MarkAllNotificationsRead marks every notification visible to the user
// read, broadcasts included.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	userID := c.Param("user_id")
	if err := h.store.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Errorf("Failed to mark all read for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}
	h.logger.Infof("Marked all notifications read for user %s", userID)
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked read"})
}

type createUserRequest struct {
	Email            string  `json:"email" binding:"required,email"`
	Password         string  `json:"password" binding:"required,min=6"`
	Name             string  `json:"name" binding:"required"`
	Role             string  `json:"role"`
	PhoneNumber      *string `json:"phone_number"`
	Department       *string `json:"department"`
	Position         *string `json:"position"`
	Address          *string `json:"address"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	ZipCode          *string `json:"zip_code"`
	Age              *int    `json:"age"`
	DateOfBirth      *string `json:"date_of_birth"`
	EmergencyContact *string `json:"emergency_contact"`
	EmergencyPhone   *string `json:"emergency_phone"`
}

// CreateUser provisions a login account plus a staff profile. Only admins
// may call it. The two writes are not atomic: if the profile write fails
// the orphaned account is logged for manual cleanup and the request
// fails.
func (h *Handler) CreateUser(c *gin.Context) {
	requesterID := c.GetHeader("X-User-ID")
	if requesterID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-User-ID header"})
		return
	}
	role, err := h.directory.GetUserRole(c.Request.Context(), requesterID)
	if err != nil {
		h.logger.Errorf("Failed to resolve role for %s: %v", requesterID, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown requester"})
		return
	}
	if role != models.RoleAdmin {
		h.logger.Warnf("User %s attempted account creation without admin role", requesterID)
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid create user request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleStaff
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Errorf("Failed to hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	id := uuid.NewString()
	if err := h.directory.CreateAccount(c.Request.Context(), id, req.Email, string(hash)); err != nil {
		h.logger.Errorf("Failed to create account for %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	now := time.Now()
	user := models.User{
		ID:               id,
		Email:            req.Email,
		Name:             req.Name,
		Role:             req.Role,
		PhoneNumber:      req.PhoneNumber,
		Department:       req.Department,
		Position:         req.Position,
		Address:          req.Address,
		City:             req.City,
		State:            req.State,
		ZipCode:          req.ZipCode,
		Age:              req.Age,
		DateOfBirth:      req.DateOfBirth,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        &now,
	}
	if err := h.directory.UpsertUser(c.Request.Context(), user); err != nil {
		// No rollback of the account: losing it here could strand a
		// half-working login. Flag the orphan for manual cleanup instead.
		h.logger.Errorf("Orphaned account %s (%s): profile write failed: %v", id, req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Account created but profile write failed"})
		return
	}

	h.logger.Infof("Created user %s (%s) with role %s", id, req.Email, user.Role)
	c.JSON(http.StatusCreated, user)
}

// SendTaskEmail relays a task assignment email. A provider timeout maps
// to 504 since the send may still have gone through; an explicit
// provider refusal maps to 502.
func (h *Handler) SendTaskEmail(c *gin.Context) {
	var params email.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		h.logger.Errorf("Invalid email request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := params.Validate(); err != nil {
		h.logger.Errorf("Invalid email request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.mailer.Send(c.Request.Context(), params)
	switch {
	case err == nil:
		h.logger.Infof("Sent task email to %s for task %q", params.ToEmail, params.TaskTitle)
		c.JSON(http.StatusOK, gin.H{"message": "Email sent"})
	case errors.Is(err, email.ErrTimeout):
		h.logger.Errorf("Email relay timed out for %s: %v", params.ToEmail, err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Email relay timed out; delivery uncertain"})
	default:
		var rejection *email.RejectionError
		if errors.As(err, &rejection) {
			h.logger.Errorf("Email relay rejected send to %s: %v", params.ToEmail, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Email relay rejected the send"})
			return
		}
		h.logger.Errorf("Failed to send task email to %s: %v", params.ToEmail, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send email"})
	}
}
