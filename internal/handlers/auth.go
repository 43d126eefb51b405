package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/config"
	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Logger: logger}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"omitempty,oneof=admin doctor user"`
}

// Register handles user registration. The user id is generated when omitted.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if req.Role == "" {
		req.Role = string(models.RoleUser)
	}

	db := h.DB.WithContext(c.Request.Context())
	var count int64
	if err := db.Model(&models.User{}).Where("user_id = ? OR email = ?", req.UserID, req.Email).Count(&count).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("register user", err))
		return
	}
	if count > 0 {
		utils.BadRequest(c, "User with this ID or email already exists")
		return
	}

	user := models.User{
		UserID: req.UserID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Role:   models.Role(req.Role),
	}
	user.Touch(time.Now().UTC())
	if err := user.SetPassword(req.Password); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	if err := db.Create(&user).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("register user", err))
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login. Earlier sessions of the user are revoked so only
// the newly issued token stays active.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.RespondError(c, h.Logger, utils.PersistenceError("log in", err))
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	now := time.Now().UTC()
	token := models.Token{
		TokenID:      uuid.NewString(),
		UserID:       user.UserID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Status:       true,
	}
	token.Touch(now)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Token{}).
			Where("user_id = ? AND status = ?", user.UserID, true).
			Updates(map[string]interface{}{"status": false, "time_updated": now}).Error; err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("store token", err))
		return
	}

	h.Logger.Info("user logged in", zap.String("user_id", user.UserID))
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken rotates the token pair of the current session. The refresh
// token must belong to the authenticated session.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	tokenID, ok := middleware.GetTokenIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	claims, err := utils.ValidateToken(req.RefreshToken, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var stored models.Token
	err = db.Where("token_id = ? AND user_id = ? AND refresh_token = ? AND status = ?",
		tokenID, claims.UserID, req.RefreshToken, true).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid refresh token")
		} else {
			utils.RespondError(c, h.Logger, utils.PersistenceError("refresh token", err))
		}
		return
	}

	var user models.User
	if err := findByID(db, &user, "user_id", claims.UserID, "User"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, h.Cfg)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	err = db.Model(&stored).Updates(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"time_updated":  time.Now().UTC(),
	}).Error
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("refresh token", err))
		return
	}

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Logout revokes the token that authenticated the request.
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenID, ok := middleware.GetTokenIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	err := h.DB.WithContext(c.Request.Context()).
		Model(&models.Token{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{"status": false, "time_updated": time.Now().UTC()}).Error
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("log out", err))
		return
	}

	utils.Success(c, "User logged out successfully", nil)
}
