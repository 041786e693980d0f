package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/metrics"
	"github.com/gdg-garage/community-events-api/internal/models"
)

// UserLookup resolves the account behind a registration.
type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type Config struct {
	Senders         []Sender
	Staff           StaffFeed
	Users           UserLookup
	DefaultTemplate string
	Timeout         time.Duration
	Logger          *zap.Logger
}

// Dispatcher fans messages out to every sender in the background. Each delivery runs under
// its own timeout, detached from the request that triggered it.
type Dispatcher struct {
	senders         []Sender
	staff           StaffFeed
	users           UserLookup
	defaultTemplate string
	timeout         time.Duration
	log             *zap.Logger
	wg              sync.WaitGroup
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		senders:         cfg.Senders,
		staff:           cfg.Staff,
		users:           cfg.Users,
		defaultTemplate: cfg.DefaultTemplate,
		timeout:         cfg.Timeout,
		log:             cfg.Logger,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// RegistrationConfirmed sends the event's confirmation message to the member.
func (d *Dispatcher) RegistrationConfirmed(event models.Event, reg models.Registration, user models.User) {
	d.async("confirmation", func(ctx context.Context) error {
		text := Render(d.template(event), event, reg)
		err := d.deliver(ctx, recipientFor(user, reg), text)
		return multierr.Append(err, d.post(ctx, fmt.Sprintf("%s registered as %s for %s on %s",
			reg.DisplayName(), reg.Type, event.Title, event.Date.Format(models.DateLayout))))
	})
}

// WaitlistRequested tells staff a request is waiting for approval.
func (d *Dispatcher) WaitlistRequested(event models.Event, reg models.Registration) {
	d.async("waitlist_request", func(ctx context.Context) error {
		return d.post(ctx, fmt.Sprintf("%s asked to join the waitlist for %s on %s",
			reg.DisplayName(), event.Title, event.Date.Format(models.DateLayout)))
	})
}

// Promoted tells the member their waitlist place turned into a booking.
func (d *Dispatcher) Promoted(event models.Event, reg models.Registration) {
	d.async("promotion", func(ctx context.Context) error {
		user := models.User{ID: reg.UserID, Name: reg.UserName}
		if d.users != nil {
			u, err := d.users.Get(ctx, reg.UserID)
			if err != nil {
				d.log.Warn("promotion recipient lookup failed", zap.String("user_id", reg.UserID), zap.Error(err))
			} else {
				user = *u
			}
		}
		text := "A place opened up! " + Render(d.template(event), event, reg)
		err := d.deliver(ctx, recipientFor(user, reg), text)
		return multierr.Append(err, d.post(ctx, fmt.Sprintf("%s was promoted from the waitlist for %s",
			reg.DisplayName(), event.Title)))
	})
}

// Flush waits for every pending delivery.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

func (d *Dispatcher) template(event models.Event) string {
	if event.ConfirmationMessage != "" {
		return event.ConfirmationMessage
	}
	return d.defaultTemplate
}

func (d *Dispatcher) async(kind string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.log.Warn("notification failed",
				zap.String("kind", kind),
				zap.Int("failures", len(multierr.Errors(err))),
				zap.Error(err))
		}
	}()
}

// deliver tries every sender and combines their failures. Senders that cannot address the
// recipient are skipped.
func (d *Dispatcher) deliver(ctx context.Context, to Recipient, text string) error {
	var err error
	for _, s := range d.senders {
		sendErr := s.Send(ctx, to, text)
		if errors.Is(sendErr, ErrNoAddress) {
			continue
		}
		metrics.RecordNotification(s.Name(), sendErr)
		if sendErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name(), sendErr))
		}
	}
	return err
}

func (d *Dispatcher) post(ctx context.Context, text string) error {
	if d.staff == nil {
		return nil
	}
	err := d.staff.Post(ctx, text)
	metrics.RecordNotification("staff", err)
	if err != nil {
		return fmt.Errorf("staff feed: %w", err)
	}
	return nil
}
