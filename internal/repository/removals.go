package repository

import (
	"context"
	"encoding/json"

	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

const (
	rmID = iota
	rmRegistrationID
	rmEventID
	rmUserID
	rmParticipantName
	rmStatus
	rmSnapshot
	rmRemovedBy
	rmReason
	rmRemovedAt
	rmColumns
)

var removalHeader = [rmColumns]string{
	"id", "registration_id", "event_id", "user_id", "participant_name", "status", "snapshot",
	"removed_by", "reason", "removed_at",
}

type removalCodec struct{}

func (removalCodec) header() []string                  { return removalHeader[:] }
func (removalCodec) id(h models.RemovalHistory) string { return h.ID }

func (removalCodec) encode(h models.RemovalHistory) []string {
	row := make([]string, rmColumns)
	row[rmID] = h.ID
	row[rmRegistrationID] = h.RegistrationID
	row[rmEventID] = h.EventID
	row[rmUserID] = h.UserID
	// readable copies for staff browsing the sheet; the snapshot is authoritative
	row[rmParticipantName] = h.Snapshot.DisplayName()
	row[rmStatus] = string(h.Snapshot.Status)
	if b, err := json.Marshal(h.Snapshot); err == nil {
		row[rmSnapshot] = string(b)
	}
	row[rmRemovedBy] = h.RemovedBy
	row[rmReason] = h.Reason
	row[rmRemovedAt] = formatTime(h.RemovedAt)
	return row
}

func (removalCodec) decode(row []string) (models.RemovalHistory, error) {
	var ce cellErrors
	h := models.RemovalHistory{
		ID:             get(row, rmID),
		RegistrationID: get(row, rmRegistrationID),
		EventID:        get(row, rmEventID),
		UserID:         get(row, rmUserID),
		RemovedBy:      get(row, rmRemovedBy),
		Reason:         get(row, rmReason),
	}
	if s := get(row, rmSnapshot); s != "" {
		ce.check("snapshot", json.Unmarshal([]byte(s), &h.Snapshot))
	}
	var err error
	h.RemovedAt, err = parseTime(get(row, rmRemovedAt))
	ce.check("removed_at", err)
	return h, ce.err
}

// Removals is append-only apart from Discard.
type Removals struct {
	t table[models.RemovalHistory]
}

func NewRemovals(store rowstore.Store) *Removals {
	return &Removals{t: newTable[models.RemovalHistory](store, rowstore.TableRemovalHistory, removalCodec{})}
}

func (r *Removals) Append(ctx context.Context, h models.RemovalHistory) error {
	return r.t.append(ctx, h)
}

// Discard deletes an entry whose removal was rolled back.
func (r *Removals) Discard(ctx context.Context, id string) error { return r.t.delete(ctx, id) }

func (r *Removals) List(ctx context.Context) ([]models.RemovalHistory, error) {
	return r.t.list(ctx)
}
