package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"osbb-app-go/internal/config"
	"osbb-app-go/internal/domain/directory"
	"osbb-app-go/pkg/logger"
)

// Identity is the authenticated caller as seen by the handlers. The core
// trusts the identity provider for authentication and the directory for
// role/organization data; it performs no credential verification itself.
type Identity struct {
	UserID string
	Role   string
	OSBBID *string
}

func (i Identity) CanManageVotings() bool {
	return i.Role == directory.RoleHead || i.Role == directory.RoleSuperadmin
}

type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*directory.User, error)
}

// IdentityVerifier validates bearer tokens against an external identity
// provider and resolves the verified subject to a directory user.
type IdentityVerifier struct {
	providerURL string
	apiKey      string
	client      *http.Client
	users       UserLookup
	skipAuth    bool
	mockUserID  string
	log         logger.Logger
}

type contextKey int

const identityKey contextKey = iota

type subjectResponse struct {
	Sub string `json:"sub"`
	ID  string `json:"id"`
}

func NewIdentityVerifier(cfg config.AuthConfig, users UserLookup, log logger.Logger) *IdentityVerifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &IdentityVerifier{
		providerURL: strings.TrimRight(cfg.ProviderURL, "/"),
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: timeout},
		users:       users,
		skipAuth:    cfg.SkipAuth,
		mockUserID:  strings.TrimSpace(cfg.MockUserID),
		log:         log,
	}
}

func (v *IdentityVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.skipAuth {
			if v.mockUserID == "" {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth mock user id not configured")
				return
			}
			v.resolve(w, r, next, v.mockUserID)
			return
		}

		if v.providerURL == "" {
			writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth provider not configured")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		subject, err := v.verify(r.Context(), token)
		if err != nil {
			unauthorized(w)
			return
		}

		v.resolve(w, r, next, subject)
	})
}

func (v *IdentityVerifier) verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.providerURL+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("token rejected by provider")
	}

	var payload subjectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	subject := payload.Sub
	if subject == "" {
		subject = payload.ID
	}
	if subject == "" {
		return "", errors.New("provider response missing subject")
	}
	return subject, nil
}

func (v *IdentityVerifier) resolve(w http.ResponseWriter, r *http.Request, next http.Handler, userID string) {
	user, err := v.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			unauthorized(w)
			return
		}
		v.log.InternalError("auth: directory lookup failed", err, "user_id", userID)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "directory unavailable")
		return
	}

	identity := Identity{
		UserID: user.ID,
		Role:   user.Role,
		OSBBID: user.OSBBID,
	}
	next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
