package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/auth"
	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
)

type UserHandler struct {
	users       *repository.Users
	locks       *keylock.Locker
	authHandler *auth.AuthHandler
	log         *zap.Logger
	now         func() time.Time
}

func NewUserHandler(users *repository.Users, locks *keylock.Locker, authHandler *auth.AuthHandler, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, locks: locks, authHandler: authHandler, log: log, now: time.Now}
}

type UpdateMeRequest struct {
	auth.AuthInput
	Body struct {
		Name           *string `json:"name,omitempty" minLength:"1" maxLength:"200"`
		Email          *string `json:"email,omitempty" maxLength:"320"`
		Phone          *string `json:"phone,omitempty" maxLength:"50"`
		TelegramChatID *int64  `json:"telegram_chat_id,omitempty" doc:"Chat id for Telegram confirmations, 0 disables"`
	}
}

type UserResponse struct {
	Body models.User
}

// HandleUpdateMe edits the caller's own contact details. Role, status and membership are
// staff-managed.
func (h *UserHandler) HandleUpdateMe(ctx context.Context, input *UpdateMeRequest) (*UserResponse, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	b := input.Body
	u, err := h.modify(ctx, id.UserID, func(u *models.User) error {
		if b.Name != nil {
			name := strings.TrimSpace(*b.Name)
			if name == "" {
				return invalidField("name", errors.New("must not be blank"))
			}
			u.Name = name
		}
		if b.Email != nil {
			u.Email = strings.TrimSpace(*b.Email)
		}
		if b.Phone != nil {
			u.Phone = strings.TrimSpace(*b.Phone)
		}
		if b.TelegramChatID != nil {
			u.TelegramChatID = *b.TelegramChatID
		}
		return nil
	})
	if err != nil {
		return nil, toHTTPError(h.log, "update_me", err)
	}
	return &UserResponse{Body: *u}, nil
}

type ListUsersRequest struct {
	auth.AuthInput
	Status models.UserStatus `query:"status" enum:"pending,active,restricted"`
}

type UsersResponse struct {
	Body []models.User
}

func (h *UserHandler) HandleList(ctx context.Context, input *ListUsersRequest) (*UsersResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	users, err := h.users.List(ctx)
	if err != nil {
		return nil, toHTTPError(h.log, "list_users", err)
	}
	out := users[:0]
	for _, u := range users {
		if input.Status == "" || u.Status == input.Status {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return &UsersResponse{Body: out}, nil
}

type AdminUpdateUserRequest struct {
	auth.AuthInput
	ID   string `path:"id"`
	Body struct {
		Status         *models.UserStatus     `json:"status,omitempty" enum:"pending,active,restricted"`
		Role           *models.Role           `json:"role,omitempty" enum:"participant,volunteer,staff"`
		MembershipType *models.MembershipType `json:"membership_type,omitempty" enum:"adhoc,once_weekly,twice_weekly,three_plus_weekly"`
	}
}

// HandleAdminUpdate approves, restricts and reclassifies members. The first transition to
// active records the approval time.
func (h *UserHandler) HandleAdminUpdate(ctx context.Context, input *AdminUpdateUserRequest) (*UserResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	b := input.Body
	u, err := h.modify(ctx, input.ID, func(u *models.User) error {
		if b.Status != nil {
			if !b.Status.Valid() {
				return invalidField("status", errors.New("unknown status"))
			}
			if *b.Status == models.UserActive && u.ApprovedAt == nil {
				now := h.now().UTC()
				u.ApprovedAt = &now
			}
			u.Status = *b.Status
		}
		if b.Role != nil {
			if !b.Role.Valid() {
				return invalidField("role", errors.New("unknown role"))
			}
			u.Role = *b.Role
		}
		if b.MembershipType != nil {
			if !b.MembershipType.Valid() {
				return invalidField("membership_type", errors.New("unknown membership type"))
			}
			u.MembershipType = *b.MembershipType
		}
		return nil
	})
	if err != nil {
		return nil, toHTTPError(h.log, "update_user", err)
	}
	h.log.Info("member updated", zap.String("user_id", u.ID), zap.String("status", string(u.Status)),
		zap.String("role", string(u.Role)), zap.String("membership", string(u.MembershipType)))
	return &UserResponse{Body: *u}, nil
}

type DeleteUserRequest struct {
	auth.AuthInput
	ID string `path:"id"`
}

type NoContentResponse struct {
	Status int
}

// HandleDelete removes the member record. Their registrations stay for attendance history.
func (h *UserHandler) HandleDelete(ctx context.Context, input *DeleteUserRequest) (*NoContentResponse, error) {
	if err := h.staff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	unlock := h.locks.Lock(keylock.UserKey(input.ID))
	defer unlock()
	if err := h.users.Delete(ctx, input.ID); err != nil {
		return nil, toHTTPError(h.log, "delete_user", userNotFound(input.ID, err))
	}
	return &NoContentResponse{Status: http.StatusNoContent}, nil
}

// modify applies fn to the stored user under the user lock so concurrent edits and quota
// checks see a consistent record.
func (h *UserHandler) modify(ctx context.Context, userID string, fn func(*models.User) error) (*models.User, error) {
	unlock := h.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	u, err := h.users.Get(ctx, userID)
	if err != nil {
		return nil, userNotFound(userID, err)
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = h.now().UTC()
	if err := h.users.Update(ctx, *u); err != nil {
		return nil, err
	}
	return u, nil
}

func (h *UserHandler) staff(ctx context.Context, in auth.AuthInput) error {
	id, err := h.authHandler.Authorize(ctx, in)
	if err != nil {
		return err
	}
	return id.RequireAdmin()
}

func userNotFound(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound("user " + id + " not found")
	}
	return err
}
