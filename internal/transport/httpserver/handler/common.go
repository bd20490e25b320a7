package handler

import (
	"net/http"

	"osbb-app-go/internal/transport/httpserver/middleware"
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authMeResponse struct {
	ID     string  `json:"id"`
	Role   string  `json:"role"`
	OSBBID *string `json:"osbb_id"`
}

func (h *Handlers) AuthMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, authMeResponse{
		ID:     identity.UserID,
		Role:   identity.Role,
		OSBBID: identity.OSBBID,
	})
}
