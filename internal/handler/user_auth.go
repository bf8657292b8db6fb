package handler

import (
	"net/http"

	"gowalink/internal/model"
	"gowalink/internal/service"

	"github.com/labstack/echo/v4"
)

// RegisterRequest represents the registration request payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// LoginRequest represents the login request payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshTokenRequest represents the refresh token request payload.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse represents the authentication response with tokens.
type AuthResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         model.UserResponse `json:"user"`
}

// Register handles user registration
// POST /register
func Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Username, email, and password are required", "MISSING_FIELDS", "")
	}

	createReq := model.CreateUserRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     "user", // Default role for registration
	}

	user, err := service.RegisterUser(createReq)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error(), "REGISTRATION_FAILED", "")
	}

	accessToken, err := service.GenerateAccessToken(user)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to generate access token", "TOKEN_GENERATION_FAILED", err.Error())
	}

	refreshToken, err := service.GenerateRefreshTokenForUser(user, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to generate refresh token", "TOKEN_GENERATION_FAILED", err.Error())
	}

	return SuccessResponse(c, http.StatusCreated, "User registered successfully", AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.ToResponse(),
	})
}

// LoginUser handles user login with username/password
// POST /login
func LoginUser(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	if req.Username == "" || req.Password == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Username and password are required", "MISSING_FIELDS", "")
	}

	user, err := service.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		if err == model.ErrInvalidCredentials {
			return ErrorResponse(c, http.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", "")
		}
		return ErrorResponse(c, http.StatusBadRequest, err.Error(), "AUTHENTICATION_FAILED", "")
	}

	accessToken, err := service.GenerateAccessToken(user)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to generate access token", "TOKEN_GENERATION_FAILED", err.Error())
	}

	refreshToken, err := service.GenerateRefreshTokenForUser(user, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to generate refresh token", "TOKEN_GENERATION_FAILED", err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "Login successful", AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.ToResponse(),
	})
}

// RefreshToken handles refresh token to get a new access token
// POST /refresh
func RefreshToken(c echo.Context) error {
	var req RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	if req.RefreshToken == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Refresh token is required", "MISSING_TOKEN", "")
	}

	accessToken, user, err := service.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		if err == model.ErrTokenNotFound || err == model.ErrTokenExpired || err == model.ErrTokenRevoked {
			return ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired refresh token", "INVALID_REFRESH_TOKEN", err.Error())
		}
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to refresh token", "REFRESH_FAILED", err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "Token refreshed successfully", map[string]interface{}{
		"access_token": accessToken,
		"user":         user.ToResponse(),
	})
}

// LogoutUser handles user logout by revoking the refresh token
// POST /api/logout
func LogoutUser(c echo.Context) error {
	var req RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	if req.RefreshToken == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Refresh token is required", "MISSING_TOKEN", "")
	}

	if err := service.RevokeUserSession(req.RefreshToken); err != nil {
		// Already logged out is fine.
		if err != model.ErrTokenNotFound {
			return ErrorResponse(c, http.StatusInternalServerError, "Failed to logout", "LOGOUT_FAILED", err.Error())
		}
	}

	return SuccessResponse(c, http.StatusOK, "Logged out successfully", nil)
}

// GetCurrentUser returns the current authenticated user's profile
// GET /api/me
func GetCurrentUser(c echo.Context) error {
	userClaims, ok := c.Get("user_claims").(*service.Claims)
	if !ok {
		return ErrorResponse(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", "")
	}

	user, err := model.GetUserByID(userClaims.UserID)
	if err != nil {
		return ErrorResponse(c, http.StatusNotFound, "User not found", "USER_NOT_FOUND", err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "User profile retrieved", user.ToResponse())
}
