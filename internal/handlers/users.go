package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/calebmorton/inkwell/internal/auth"
	"github.com/calebmorton/inkwell/internal/models"
	"github.com/calebmorton/inkwell/internal/services"
	pkghttp "github.com/calebmorton/inkwell/pkg/http"
)

// UserGetter is the slice of the user repository the profile endpoint needs
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UsersHandler serves the authenticated user's own profile
type UsersHandler struct {
	repo UserGetter
}

func NewUsersHandler(repo UserGetter) *UsersHandler {
	return &UsersHandler{repo: repo}
}

// Me returns the profile of the authenticated user
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.repo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, services.UserResponseFromModel(user))
}
