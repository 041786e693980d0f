package repository

import (
	"context"
	"strconv"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

const (
	userID = iota
	userName
	userEmail
	userPhone
	userRole
	userStatus
	userMembershipType
	userTelegramChatID
	userCreatedAt
	userApprovedAt
	userUpdatedAt
	userColumns
)

var userHeader = [userColumns]string{
	"id", "name", "email", "phone", "role", "status", "membership_type", "telegram_chat_id",
	"created_at", "approved_at", "updated_at",
}

type userCodec struct{}

func (userCodec) header() []string        { return userHeader[:] }
func (userCodec) id(u models.User) string { return u.ID }

func (userCodec) encode(u models.User) []string {
	row := make([]string, userColumns)
	row[userID] = u.ID
	row[userName] = u.Name
	row[userEmail] = u.Email
	row[userPhone] = u.Phone
	row[userRole] = string(u.Role)
	row[userStatus] = string(u.Status)
	row[userMembershipType] = string(u.MembershipType)
	if u.TelegramChatID != 0 {
		row[userTelegramChatID] = strconv.FormatInt(u.TelegramChatID, 10)
	}
	row[userCreatedAt] = formatTime(u.CreatedAt)
	row[userApprovedAt] = formatTimePtr(u.ApprovedAt)
	row[userUpdatedAt] = formatTime(u.UpdatedAt)
	return row
}

func (userCodec) decode(row []string) (models.User, error) {
	var ce cellErrors
	u := models.User{
		ID:             get(row, userID),
		Name:           get(row, userName),
		Email:          get(row, userEmail),
		Phone:          get(row, userPhone),
		Role:           models.Role(get(row, userRole)),
		Status:         models.UserStatus(get(row, userStatus)),
		MembershipType: models.MembershipType(get(row, userMembershipType)),
	}
	// rows added by hand may leave these blank
	if u.Role == "" {
		u.Role = models.RoleParticipant
	}
	if u.Status == "" {
		u.Status = models.UserPending
	}
	if u.MembershipType == "" {
		u.MembershipType = models.MembershipAdhoc
	}
	if !u.Role.Valid() {
		ce.check("role", errInvalid(string(u.Role)))
	}
	if !u.Status.Valid() {
		ce.check("status", errInvalid(string(u.Status)))
	}
	if !u.MembershipType.Valid() {
		ce.check("membership_type", errInvalid(string(u.MembershipType)))
	}
	var err error
	if s := get(row, userTelegramChatID); s != "" {
		u.TelegramChatID, err = strconv.ParseInt(s, 10, 64)
		ce.check("telegram_chat_id", err)
	}
	u.CreatedAt, err = parseTime(get(row, userCreatedAt))
	ce.check("created_at", err)
	u.ApprovedAt, err = parseTimePtr(get(row, userApprovedAt))
	ce.check("approved_at", err)
	u.UpdatedAt, err = parseTime(get(row, userUpdatedAt))
	ce.check("updated_at", err)
	return u, ce.err
}

type Users struct {
	t table[models.User]
}

func NewUsers(store rowstore.Store) *Users {
	return &Users{t: newTable[models.User](store, rowstore.TableUsers, userCodec{})}
}

func (r *Users) List(ctx context.Context) ([]models.User, error) { return r.t.list(ctx) }

func (r *Users) Get(ctx context.Context, id string) (*models.User, error) { return r.t.get(ctx, id) }

func (r *Users) Create(ctx context.Context, u models.User) error { return r.t.append(ctx, u) }

func (r *Users) Update(ctx context.Context, u models.User) error { return r.t.update(ctx, u) }

func (r *Users) Delete(ctx context.Context, id string) error { return r.t.delete(ctx, id) }
