package repository

import (
	"context"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

const (
	regID = iota
	regEventID
	regUserID
	regUserName
	regType
	regStatus
	regIsCaregiver
	regParticipantName
	regEmail
	regPhone
	regEmergencyContact
	regAccessibilityNeeds
	regDietaryRequirements
	regNotes
	regWaitlistPosition
	regPromotedAt
	regRegisteredAt
	regUpdatedAt
	regColumns
)

var registrationHeader = [regColumns]string{
	"id", "event_id", "user_id", "user_name", "registration_type", "status", "is_caregiver",
	"participant_name", "email", "phone", "emergency_contact", "accessibility_needs",
	"dietary_requirements", "notes", "waitlist_position", "promoted_at", "registered_at", "updated_at",
}

type registrationCodec struct{}

func (registrationCodec) header() []string                { return registrationHeader[:] }
func (registrationCodec) id(r models.Registration) string { return r.ID }

func (registrationCodec) encode(r models.Registration) []string {
	row := make([]string, regColumns)
	row[regID] = r.ID
	row[regEventID] = r.EventID
	row[regUserID] = r.UserID
	row[regUserName] = r.UserName
	row[regType] = string(r.Type)
	row[regStatus] = string(r.Status)
	row[regIsCaregiver] = formatBool(r.IsCaregiver)
	row[regParticipantName] = r.ParticipantName
	row[regEmail] = r.Email
	row[regPhone] = r.Phone
	row[regEmergencyContact] = r.EmergencyContact
	row[regAccessibilityNeeds] = r.AccessibilityNeeds
	row[regDietaryRequirements] = r.DietaryRequirements
	row[regNotes] = r.Notes
	row[regWaitlistPosition] = formatIntPtr(r.WaitlistPosition)
	row[regPromotedAt] = formatTimePtr(r.PromotedAt)
	row[regRegisteredAt] = formatTime(r.RegisteredAt)
	row[regUpdatedAt] = formatTime(r.UpdatedAt)
	return row
}

func (registrationCodec) decode(row []string) (models.Registration, error) {
	var ce cellErrors
	r := models.Registration{
		ID:                  get(row, regID),
		EventID:             get(row, regEventID),
		UserID:              get(row, regUserID),
		UserName:            get(row, regUserName),
		Type:                models.RegistrationType(get(row, regType)),
		Status:              models.Status(get(row, regStatus)),
		IsCaregiver:         parseBool(get(row, regIsCaregiver)),
		ParticipantName:     get(row, regParticipantName),
		Email:               get(row, regEmail),
		Phone:               get(row, regPhone),
		EmergencyContact:    get(row, regEmergencyContact),
		AccessibilityNeeds:  get(row, regAccessibilityNeeds),
		DietaryRequirements: get(row, regDietaryRequirements),
		Notes:               get(row, regNotes),
	}
	if !r.Type.Valid() {
		ce.check("registration_type", errInvalid(string(r.Type)))
	}
	if !r.Status.Valid() {
		ce.check("status", errInvalid(string(r.Status)))
	}
	var err error
	r.WaitlistPosition, err = parseIntPtr(get(row, regWaitlistPosition))
	ce.check("waitlist_position", err)
	r.PromotedAt, err = parseTimePtr(get(row, regPromotedAt))
	ce.check("promoted_at", err)
	r.RegisteredAt, err = parseTime(get(row, regRegisteredAt))
	ce.check("registered_at", err)
	r.UpdatedAt, err = parseTime(get(row, regUpdatedAt))
	ce.check("updated_at", err)
	return r, ce.err
}

type Registrations struct {
	t table[models.Registration]
}

func NewRegistrations(store rowstore.Store) *Registrations {
	return &Registrations{t: newTable[models.Registration](store, rowstore.TableRegistrations, registrationCodec{})}
}

func (r *Registrations) List(ctx context.Context) ([]models.Registration, error) {
	return r.t.list(ctx)
}

func (r *Registrations) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	return r.filter(ctx, func(reg models.Registration) bool { return reg.EventID == eventID })
}

func (r *Registrations) ListByUser(ctx context.Context, userID string) ([]models.Registration, error) {
	return r.filter(ctx, func(reg models.Registration) bool { return reg.UserID == userID })
}

func (r *Registrations) filter(ctx context.Context, keep func(models.Registration) bool) ([]models.Registration, error) {
	all, err := r.t.list(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Registration{}
	for _, reg := range all {
		if keep(reg) {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *Registrations) Get(ctx context.Context, id string) (*models.Registration, error) {
	return r.t.get(ctx, id)
}

func (r *Registrations) Create(ctx context.Context, reg models.Registration) error {
	return r.t.append(ctx, reg)
}

func (r *Registrations) Update(ctx context.Context, reg models.Registration) error {
	return r.t.update(ctx, reg)
}

func (r *Registrations) Delete(ctx context.Context, id string) error { return r.t.delete(ctx, id) }
