package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/gdg-garage/community-events-api/internal/config"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"
	DiscordUserGuildsAPI     = "https://discord.com/api/users/@me/guilds"
)

const (
	TokenDuration   = 24 * time.Hour
	TokenCookieName = "auth_token"
	stateCookieName = "oauth_state"
)

// UserStore is the part of the users table the login flow needs.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u models.User) error
	Update(ctx context.Context, u models.User) error
}

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	users       UserStore
	cfg         *config.Config
	log         *zap.Logger
	userAPI     string
	guildsAPI   string
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, users UserStore) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		db:        db,
		users:     users,
		cfg:       cfg,
		log:       zap.NewNop(),
		userAPI:   DiscordUserAPI,
		guildsAPI: DiscordUserGuildsAPI,
	}
}

func (h *AuthHandler) WithLogger(log *zap.Logger) *AuthHandler {
	h.log = log
	return h
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Path:     "/auth",
		SameSite: http.SameSiteLaxMode,
	})
	url := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookieName)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid login state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.Error(err))
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	client := h.oauthConfig.Client(r.Context(), token)

	// Check Guild Membership
	if h.cfg.DiscordGuildID != "" {
		isMember, err := h.inGuild(client)
		if err != nil {
			h.log.Warn("guild lookup failed", zap.Error(err))
			http.Error(w, "Failed to get user guilds", http.StatusInternalServerError)
			return
		}
		if !isMember {
			http.Error(w, "Access denied: You are not a member of the required guild.", http.StatusForbidden)
			return
		}
	}

	discordUser, err := h.fetchUser(client)
	if err != nil {
		h.log.Warn("user lookup failed", zap.Error(err))
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	user, err := h.upsertUser(r.Context(), discordUser.ID, discordUser.displayName(), discordUser.Email)
	if err != nil {
		h.log.Error("saving user failed", zap.String("user_id", discordUser.ID), zap.Error(err))
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(user.ID, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, sessionCookie(jwtToken))
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1})

	if h.cfg.FrontendURL != "" {
		http.Redirect(w, r, h.cfg.FrontendURL, http.StatusFound)
		return
	}
	w.Write([]byte(fmt.Sprintf("Welcome %s! You are logged in.", user.Name)))
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
}

func (u discordUser) displayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (h *AuthHandler) inGuild(client *http.Client) (bool, error) {
	resp, err := client.Get(h.guildsAPI)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("guilds api: %s", resp.Status)
	}

	var guilds []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return false, err
	}
	for _, g := range guilds {
		if g.ID == h.cfg.DiscordGuildID {
			return true, nil
		}
	}
	return false, nil
}

func (h *AuthHandler) fetchUser(client *http.Client) (*discordUser, error) {
	resp, err := client.Get(h.userAPI)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user api: %s", resp.Status)
	}
	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("user api returned no id")
	}
	return &u, nil
}

// upsertUser creates the member on first sign-in. New members wait for staff approval unless
// their id is configured as staff. Profile fields the member has edited are left alone.
func (h *AuthHandler) upsertUser(ctx context.Context, id, name, email string) (*models.User, error) {
	now := time.Now().UTC()
	user, err := h.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		u := models.User{
			ID:             id,
			Name:           name,
			Email:          email,
			Role:           models.RoleParticipant,
			Status:         models.UserPending,
			MembershipType: models.MembershipAdhoc,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if h.cfg.IsStaffID(id) {
			u.Role = models.RoleStaff
			u.Status = models.UserActive
			u.ApprovedAt = &now
		}
		if err := h.users.Create(ctx, u); err != nil {
			return nil, err
		}
		h.log.Info("new member signed in", zap.String("user_id", id), zap.String("role", string(u.Role)))
		return &u, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if user.Name == "" && name != "" {
		user.Name, changed = name, true
	}
	if user.Email == "" && email != "" {
		user.Email, changed = email, true
	}
	if h.cfg.IsStaffID(id) && (user.Role != models.RoleStaff || user.Status != models.UserActive) {
		user.Role, user.Status, changed = models.RoleStaff, models.UserActive, true
	}
	if changed {
		user.UpdatedAt = now
		if err := h.users.Update(ctx, *user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// GenerateToken signs a session token. The role claim is informational; authorization always
// reloads the member.
func (h *AuthHandler) GenerateToken(userID string, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Expires:  time.Now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
