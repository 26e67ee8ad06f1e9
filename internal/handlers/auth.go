package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/calebmorton/inkwell/internal/auth"
	"github.com/calebmorton/inkwell/internal/models"
	"github.com/calebmorton/inkwell/internal/ratelimit"
	"github.com/calebmorton/inkwell/internal/services"
	pkghttp "github.com/calebmorton/inkwell/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, identifier string) (*services.AuthResponse, error)
	Register(ctx context.Context, email, password, name, role, identifier string) (*services.UserResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, identifier string) error
	ConfirmReset(ctx context.Context, plainToken, newPassword string) error
}

// EmailVerificationServiceInterface defines the interface for email verification
type EmailVerificationServiceInterface interface {
	VerifyEmail(ctx context.Context, plainToken string) (string, error)
	ResendVerification(ctx context.Context, email string) error
	GetStatus(ctx context.Context, userID string) (bool, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	resetService PasswordResetServiceInterface
	verification EmailVerificationServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	resetService PasswordResetServiceInterface,
	verification EmailVerificationServiceInterface,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		resetService: resetService,
		verification: verification,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=student creator print_shop"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RequestResetRequest represents the request body for a forgot-password request
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmResetRequest represents the request body for completing a reset
type ConfirmResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerificationStatusResponse represents the response for verification status
type VerificationStatusResponse struct {
	EmailVerified        bool `json:"email_verified"`
	VerificationRequired bool `json:"verification_required"`
}

// decodeAndValidate parses the JSON body into req and runs the validator,
// writing the 400 itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed",
			err.Error(), ValidationDetails(err))
		return false
	}
	return true
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identifier := ratelimit.ClientIdentifier(r)

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, identifier)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResp)
}

// Register handles user registration. The response is the same generic
// 202 whether the account was created or the email was already taken,
// so registration cannot be used to probe for accounts.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identifier := ratelimit.ClientIdentifier(r)

	_, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name, req.Role, identifier)
	if err != nil {
		var rateErr *models.RateLimitError
		var weakErr *models.WeakPasswordError
		switch {
		case errors.As(err, &rateErr):
			pkghttp.WriteRateLimited(w, rateErr.RetryAfter)
			return
		case errors.As(err, &weakErr):
			// Policy violations are user-visible: the client needs to
			// know what to fix
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
				weakErr.Error(), weakErr.Violations)
			return
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid registration request")
			return
		case errors.Is(err, models.ErrConflict):
			// Fall through to the generic acknowledgement
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Registration received. If the email is not already registered, you will receive a confirmation email.",
	})
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	authResp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResp)
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.Type != "access" {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	_, tokenString, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if err := h.service.Logout(r.Context(), tokenString); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles the forgot-password request. Always 202
// unless rate limited: the body never reveals whether the address exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identifier := ratelimit.ClientIdentifier(r)

	if err := h.resetService.RequestReset(r.Context(), req.Email, identifier); err != nil {
		var rateErr *models.RateLimitError
		if errors.As(err, &rateErr) {
			pkghttp.WriteRateLimited(w, rateErr.RetryAfter)
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists with this email, a password reset email will be sent.",
	})
}

// ConfirmPasswordReset completes a reset with a mailed token
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.resetService.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		var weakErr *models.WeakPasswordError
		switch {
		case errors.As(err, &weakErr):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
				weakErr.Error(), weakErr.Violations)
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. Please log in with your new password.",
	})
}

// VerifyEmail handles email verification with a token
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := h.verification.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired verification token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully. Please log in.",
		"user_id": userID,
	})
}

// ResendVerification handles resending of verification email. Always 202
// to prevent enumeration.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	_ = h.verification.ResendVerification(r.Context(), email)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists with this email, a verification email will be sent.",
	})
}

// VerificationStatus reports the verification state of the current user
func (h *AuthHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	verified, err := h.verification.GetStatus(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, VerificationStatusResponse{
		EmailVerified:        verified,
		VerificationRequired: !verified,
	})
}

// writeAuthError maps service errors for login/refresh. Every
// credential and account-state failure collapses into the same 401 so
// responses do not reveal which accounts exist or their state; only the
// rate limit is distinguishable, and it carries nothing but the delay.
func writeAuthError(w http.ResponseWriter, err error) {
	var rateErr *models.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		pkghttp.WriteRateLimited(w, rateErr.RetryAfter)
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrAccountDisabled),
		errors.Is(err, models.ErrAccountSuspended),
		errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
