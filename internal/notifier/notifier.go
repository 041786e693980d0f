// Package notifier delivers confirmations to members and a running feed to staff. Delivery is
// best effort: failures are logged and counted, never returned to the operation that caused them.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/community-events-api/internal/models"
)

// ErrNoAddress is returned by a sender that has no way to reach the recipient.
var ErrNoAddress = errors.New("recipient has no address for this sender")

// Recipient is one person across every channel they can be reached on.
type Recipient struct {
	UserID         string
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
}

func recipientFor(user models.User, reg models.Registration) Recipient {
	r := Recipient{
		UserID:         user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Phone:          user.Phone,
		TelegramChatID: user.TelegramChatID,
	}
	if reg.Email != "" {
		r.Email = reg.Email
	}
	if reg.Phone != "" {
		r.Phone = reg.Phone
	}
	return r
}

// Sender delivers a text message to a member.
type Sender interface {
	Name() string
	Send(ctx context.Context, to Recipient, text string) error
}

// StaffFeed posts operational messages where staff can see them.
type StaffFeed interface {
	Post(ctx context.Context, text string) error
}

const DefaultTemplate = "Hi {name}, you are booked in for {event} on {date} at {time}, {location}."

// Render fills the confirmation template placeholders for a registration.
func Render(template string, event models.Event, reg models.Registration) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	when := event.StartTime.String()
	if event.EndTime != nil {
		when = fmt.Sprintf("%s-%s", event.StartTime, *event.EndTime)
	}
	return strings.NewReplacer(
		"{name}", reg.DisplayName(),
		"{event}", event.Title,
		"{date}", event.Date.Format(models.DateLayout),
		"{time}", when,
		"{location}", event.Location,
	).Replace(template)
}
