package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// UserHandler handles user-related requests.
type UserHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, logger *zap.Logger) *UserHandler {
	return &UserHandler{DB: db, Logger: logger}
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.WithContext(c.Request.Context()).Find(&users).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("fetch users", err))
		return
	}

	sanitizedUsers := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitizedUsers[i] = u.Sanitize()
	}

	utils.Success(c, "Users fetched successfully", sanitizedUsers)
}

// GetMe returns the authenticated user.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	h.respondUser(c, userID)
}

// GetUserByID handles fetching a single user by ID.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	h.respondUser(c, c.Param("id"))
}

func (h *UserHandler) respondUser(c *gin.Context, userID string) {
	var user models.User
	if err := findByID(h.DB.WithContext(c.Request.Context()), &user, "user_id", userID, "User"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating the own profile.
// Roles are assigned at registration and cannot be changed here.
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}

// UpdateMe updates the authenticated user's profile.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	db := h.DB.WithContext(c.Request.Context())
	var user models.User
	if err := findByID(db, &user, "user_id", userID, "User"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	if req.Email != "" && req.Email != user.Email {
		taken, err := exists(db.Where("user_id <> ?", user.UserID), &models.User{}, "email", req.Email)
		if err != nil {
			utils.RespondError(c, h.Logger, err)
			return
		}
		if taken {
			utils.BadRequest(c, "Email already in use")
			return
		}
		user.Email = req.Email
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	user.TimeUpdated = time.Now().UTC()

	if err := db.Save(&user).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("update user", err))
		return
	}

	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteMe deletes the authenticated user together with their tokens.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var deleted int64
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = models.DeleteUserCascade(tx, userID)
		return err
	})
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("delete user", err))
		return
	}
	if deleted == 0 {
		utils.NotFound(c, "User not found")
		return
	}

	utils.Success(c, "User deleted successfully", nil)
}
