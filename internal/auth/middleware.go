package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

type contextKey string

const identityKey contextKey = "identity"

var (
	errNoCredentials = errors.New("no credentials")
	errInvalidToken  = errors.New("invalid token")
	errExpiredAPIKey = errors.New("api key expired")
	errUnknownAPIKey = errors.New("unknown api key")
	errInvalidClaims = errors.New("invalid token claims")
)

// Identity is the authenticated member behind a request, reloaded from the users table so
// role and status changes apply immediately.
type Identity struct {
	UserID string
	Name   string
	Role   models.Role
	Status models.UserStatus
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleStaff }

// RequireActive rejects members who are still pending approval or restricted.
func (i Identity) RequireActive() error {
	if i.IsAdmin() || i.Status == models.UserActive {
		return nil
	}
	return huma.Error403Forbidden(fmt.Sprintf("account is %s", i.Status))
}

func (i Identity) RequireAdmin() error {
	if !i.IsAdmin() {
		return huma.Error403Forbidden("staff only")
	}
	return nil
}

// RequireSelfOrStaff lets a member act on their own records and staff act on anyone's.
func (i Identity) RequireSelfOrStaff(userID string) error {
	if i.IsAdmin() || i.UserID == userID {
		return nil
	}
	return huma.Error403Forbidden("not allowed to act for another member")
}

// AuthInput is embedded in huma request structs so operations can authorize themselves.
type AuthInput struct {
	Cookie string `header:"Cookie" doc:"Session cookie (auth_token)"`
	APIKey string `header:"X-API-KEY" doc:"API key"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Authorize resolves the caller. An identity placed on the context by AuthMiddleware wins,
// then the API key, then the session cookie.
func (h *AuthHandler) Authorize(ctx context.Context, in AuthInput) (Identity, error) {
	if id, ok := IdentityFrom(ctx); ok {
		return id, nil
	}
	userID, _, err := h.credentials(in.APIKey, cookieValue(in.Cookie, TokenCookieName))
	if err != nil {
		return Identity{}, huma.Error401Unauthorized("Unauthorized: " + err.Error())
	}
	return h.identity(ctx, userID)
}

func (h *AuthHandler) identity(ctx context.Context, userID string) (Identity, error) {
	if h.users == nil {
		return Identity{UserID: userID}, nil
	}
	u, err := h.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Identity{}, huma.Error401Unauthorized("Unauthorized: unknown user")
	}
	if err != nil {
		h.log.Error("loading identity failed", zap.String("user_id", userID), zap.Error(err))
		return Identity{}, huma.Error500InternalServerError("internal error")
	}
	return Identity{UserID: u.ID, Name: u.Name, Role: u.Role, Status: u.Status}, nil
}

// credentials validates an API key or session token and returns the user id and, for
// tokens, the expiry.
func (h *AuthHandler) credentials(apiKey, token string) (string, time.Time, error) {
	if apiKey != "" && h.db != nil {
		var key models.APIKey
		if err := h.db.Where("key = ?", apiKey).First(&key).Error; err != nil {
			return "", time.Time{}, errUnknownAPIKey
		}
		if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
			return "", time.Time{}, errExpiredAPIKey
		}
		h.db.Model(&key).Update("last_used_at", time.Now())
		return key.UserID, time.Time{}, nil
	}
	if token == "" {
		return "", time.Time{}, errNoCredentials
	}
	return h.parseToken(token)
}

func (h *AuthHandler) parseToken(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errInvalidClaims
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", time.Time{}, errInvalidClaims
	}
	var exp time.Time
	if v, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(v), 0)
	}
	return userID, exp, nil
}

// AuthMiddleware attaches the caller's identity when valid credentials are present and
// refreshes session cookies past half their lifetime. Requests without credentials pass
// through; operations decide whether they need an identity.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(TokenCookieName); err == nil {
			token = c.Value
		}
		userID, exp, err := h.credentials(r.Header.Get("X-API-KEY"), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.identity(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		// Sliding session: refresh token if it's more than halfway through its duration
		if !exp.IsZero() && time.Until(exp) < TokenDuration/2 {
			if newToken, err := h.GenerateToken(id.UserID, id.Role); err == nil {
				http.SetCookie(w, sessionCookie(newToken))
			}
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAuth rejects requests that AuthMiddleware could not identify.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleMe returns the caller's member record.
func (h *AuthHandler) HandleMe(ctx context.Context, input *MeRequest) (*MeResponse, error) {
	id, err := h.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	resp := &MeResponse{}
	if h.users == nil {
		resp.Body.ID = id.UserID
		return resp, nil
	}
	u, err := h.users.Get(ctx, id.UserID)
	if err != nil {
		return nil, huma.Error401Unauthorized("Unauthorized: unknown user")
	}
	resp.Body = *u
	return resp, nil
}

type MeRequest struct {
	AuthInput
}

type MeResponse struct {
	Body models.User
}

func cookieValue(header, name string) string {
	if header == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": []string{header}}}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
