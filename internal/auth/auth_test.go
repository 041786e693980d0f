package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gdg-garage/community-events-api/internal/config"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

func newUsers(t *testing.T, users ...models.User) *repository.Users {
	t.Helper()
	repo := repository.NewUsers(rowstore.NewMemory())
	for _, u := range users {
		if err := repo.Create(context.Background(), u); err != nil {
			t.Fatalf("seeding user: %v", err)
		}
	}
	return repo
}

func TestHandleMe(t *testing.T) {
	user := models.User{
		ID:             "123456",
		Name:           "testuser",
		Email:          "test@example.com",
		Role:           models.RoleParticipant,
		Status:         models.UserActive,
		MembershipType: models.MembershipAdhoc,
	}
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, nil, newUsers(t, user))

	t.Run("Authenticated", func(t *testing.T) {
		token, _ := handler.GenerateToken(user.ID, user.Role)
		input := &MeRequest{AuthInput{Cookie: "theme=dark; auth_token=" + token}}
		resp, err := handler.HandleMe(context.Background(), input)
		if err != nil {
			t.Fatalf("HandleMe returned error: %v", err)
		}

		if resp.Body.Name != user.Name {
			t.Errorf("expected name %s, got %s", user.Name, resp.Body.Name)
		}
		if resp.Body.Email != user.Email {
			t.Errorf("expected email %s, got %s", user.Email, resp.Body.Email)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := handler.HandleMe(context.Background(), &MeRequest{})
		if err == nil {
			t.Fatal("expected error for unauthenticated request, got nil")
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		token, _ := handler.GenerateToken("999", models.RoleStaff)
		_, err := handler.HandleMe(context.Background(), &MeRequest{AuthInput{Cookie: "auth_token=" + token}})
		if err == nil {
			t.Fatal("expected error for a token whose user no longer exists")
		}
	})
}

func TestAuthorize_APIKey(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	db.AutoMigrate(&models.APIKey{})

	past := time.Now().Add(-time.Hour)
	db.Create(&models.APIKey{UserID: "42", Key: "good-key", Name: "ci"})
	db.Create(&models.APIKey{UserID: "42", Key: "old-key", Name: "old", ExpiresAt: &past})

	staff := models.User{ID: "42", Name: "Sam", Role: models.RoleStaff, Status: models.UserActive}
	handler := NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db, newUsers(t, staff))

	t.Run("Valid", func(t *testing.T) {
		id, err := handler.Authorize(context.Background(), AuthInput{APIKey: "good-key"})
		if err != nil {
			t.Fatalf("Authorize returned error: %v", err)
		}
		if id.UserID != "42" || !id.IsAdmin() {
			t.Errorf("unexpected identity %+v", id)
		}
		var key models.APIKey
		db.Where("key = ?", "good-key").First(&key)
		if key.LastUsedAt == nil {
			t.Error("expected last_used_at to be recorded")
		}
	})

	t.Run("Expired", func(t *testing.T) {
		if _, err := handler.Authorize(context.Background(), AuthInput{APIKey: "old-key"}); err == nil {
			t.Fatal("expected expired key to be rejected")
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := handler.Authorize(context.Background(), AuthInput{APIKey: "nope"}); err == nil {
			t.Fatal("expected unknown key to be rejected")
		}
	})
}

func TestIdentityGuards(t *testing.T) {
	pending := Identity{UserID: "1", Role: models.RoleParticipant, Status: models.UserPending}
	active := Identity{UserID: "2", Role: models.RoleParticipant, Status: models.UserActive}
	staff := Identity{UserID: "3", Role: models.RoleStaff, Status: models.UserPending}

	if pending.RequireActive() == nil {
		t.Error("pending member should not pass RequireActive")
	}
	if active.RequireActive() != nil {
		t.Error("active member should pass RequireActive")
	}
	if staff.RequireActive() != nil {
		t.Error("staff should always pass RequireActive")
	}
	if active.RequireAdmin() == nil {
		t.Error("participant should not pass RequireAdmin")
	}
	if active.RequireSelfOrStaff("2") != nil || active.RequireSelfOrStaff("9") == nil {
		t.Error("RequireSelfOrStaff should allow only the member themselves")
	}
	if staff.RequireSelfOrStaff("9") != nil {
		t.Error("staff should act for anyone")
	}
}

func TestUpsertUser(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", StaffIDs: []string{"7"}}
	users := newUsers(t, models.User{ID: "5", Name: "Custom Name", Role: models.RoleVolunteer, Status: models.UserActive})
	handler := NewAuthHandler(cfg, nil, users)
	ctx := context.Background()

	t.Run("NewMemberIsPending", func(t *testing.T) {
		u, err := handler.upsertUser(ctx, "1", "Ana", "ana@example.com")
		if err != nil {
			t.Fatalf("upsertUser: %v", err)
		}
		if u.Status != models.UserPending || u.Role != models.RoleParticipant {
			t.Errorf("expected pending participant, got %s/%s", u.Status, u.Role)
		}
		if _, err := users.Get(ctx, "1"); err != nil {
			t.Errorf("expected user to be stored: %v", err)
		}
	})

	t.Run("ConfiguredStaff", func(t *testing.T) {
		u, err := handler.upsertUser(ctx, "7", "Boss", "")
		if err != nil {
			t.Fatalf("upsertUser: %v", err)
		}
		if u.Role != models.RoleStaff || u.Status != models.UserActive || u.ApprovedAt == nil {
			t.Errorf("expected approved staff, got %+v", u)
		}
	})

	t.Run("ExistingMemberKeepsProfile", func(t *testing.T) {
		u, err := handler.upsertUser(ctx, "5", "Discord Name", "new@example.com")
		if err != nil {
			t.Fatalf("upsertUser: %v", err)
		}
		if u.Name != "Custom Name" {
			t.Errorf("expected stored name to win, got %s", u.Name)
		}
		if u.Email != "new@example.com" {
			t.Errorf("expected blank email to be filled, got %s", u.Email)
		}
		if u.Role != models.RoleVolunteer {
			t.Errorf("expected role to be kept, got %s", u.Role)
		}
	})
}

func TestHandleLogin_SetsState(t *testing.T) {
	handler := NewAuthHandler(&config.Config{DiscordClientID: "cid"}, nil, nil)
	rr := httptest.NewRecorder()
	handler.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("expected oauth_state cookie")
	}
	loc, _ := url.Parse(rr.Header().Get("Location"))
	if loc.Query().Get("state") != state {
		t.Errorf("redirect state %q does not match cookie %q", loc.Query().Get("state"), state)
	}
}

func TestHandleCallback(t *testing.T) {
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "at", "token_type": "bearer"})
		case "/users/@me":
			json.NewEncoder(w).Encode(map[string]string{"id": "77", "username": "ana", "global_name": "Ana", "email": "ana@example.com"})
		case "/users/@me/guilds":
			json.NewEncoder(w).Encode([]map[string]string{{"id": "other"}, {"id": "guild"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer discord.Close()

	newHandler := func(guild string) (*AuthHandler, *repository.Users) {
		users := newUsers(t)
		cfg := &config.Config{JWTSecret: "test-secret", DiscordGuildID: guild, FrontendURL: "https://app.example.com"}
		h := NewAuthHandler(cfg, nil, users)
		h.oauthConfig.Endpoint.TokenURL = discord.URL + "/token"
		h.userAPI = discord.URL + "/users/@me"
		h.guildsAPI = discord.URL + "/users/@me/guilds"
		return h, users
	}
	callback := func(h *AuthHandler, cookieState, queryState string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+queryState, nil)
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, req)
		return rr
	}

	t.Run("Success", func(t *testing.T) {
		h, users := newHandler("guild")
		rr := callback(h, "s1", "s1")
		if rr.Code != http.StatusFound {
			t.Fatalf("expected redirect, got %d: %s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Location") != "https://app.example.com" {
			t.Errorf("unexpected redirect %s", rr.Header().Get("Location"))
		}
		found := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == TokenCookieName && c.Value != "" {
				found = true
			}
		}
		if !found {
			t.Error("expected auth_token cookie")
		}
		u, err := users.Get(context.Background(), "77")
		if err != nil {
			t.Fatalf("expected user to be created: %v", err)
		}
		if u.Name != "Ana" || u.Status != models.UserPending {
			t.Errorf("unexpected user %+v", u)
		}
	})

	t.Run("StateMismatch", func(t *testing.T) {
		h, _ := newHandler("")
		if rr := callback(h, "s1", "forged"); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("NotInGuild", func(t *testing.T) {
		h, users := newHandler("elsewhere")
		rr := callback(h, "s1", "s1")
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "guild") {
			t.Errorf("unexpected body %q", rr.Body.String())
		}
		if _, err := users.Get(context.Background(), "77"); err == nil {
			t.Error("user outside the guild should not be stored")
		}
	})
}
