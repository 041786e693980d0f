package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-garage/community-events-api/internal/admission"
	"github.com/gdg-garage/community-events-api/internal/keylock"
	"github.com/gdg-garage/community-events-api/internal/models"
	"github.com/gdg-garage/community-events-api/internal/repository"
	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func intPtr(n int) *int { return &n }

func newCatalog(t *testing.T) (*Catalog, *repository.Set) {
	t.Helper()
	repos := repository.New(rowstore.NewMemory())
	require.NoError(t, repos.EnsureTables(context.Background()))
	c := New(repos.Events, keylock.New(), nil)
	c.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return c, repos
}

func draft() Draft {
	end := models.TimeOfDay(11 * 60)
	return Draft{
		Title:     "Chair yoga",
		Date:      date("2026-03-02"),
		StartTime: models.TimeOfDay(10 * 60),
		EndTime:   &end,
		Location:  "Hall B",
		Category:  "wellbeing",
		Capacity:  intPtr(10),
	}
}

func TestRecurrence_Dates(t *testing.T) {
	until := date("2026-03-31")
	tests := []struct {
		name  string
		rule  Recurrence
		first string
		want  []string
	}{
		{"daily count", Recurrence{Frequency: Daily, Count: 3}, "2026-03-02", []string{"2026-03-02", "2026-03-03", "2026-03-04"}},
		{"weekly until", Recurrence{Frequency: Weekly, Until: &until}, "2026-03-02", []string{"2026-03-02", "2026-03-09", "2026-03-16", "2026-03-23", "2026-03-30"}},
		{"biweekly count", Recurrence{Frequency: Biweekly, Count: 2}, "2026-03-02", []string{"2026-03-02", "2026-03-16"}},
		{"monthly clamps to month end", Recurrence{Frequency: Monthly, Count: 4}, "2026-01-31", []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"}},
		{"count and until, until first", Recurrence{Frequency: Daily, Count: 40, Until: &until}, "2026-03-29", []string{"2026-03-29", "2026-03-30", "2026-03-31"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates, err := tt.rule.Dates(date(tt.first))
			require.NoError(t, err)
			got := make([]string, 0, len(dates))
			for _, d := range dates {
				got = append(got, d.Format(models.DateLayout))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecurrence_DatesBounds(t *testing.T) {
	far := date("2030-01-01")
	dates, err := Recurrence{Frequency: Daily, Until: &far}.Dates(date("2026-03-02"))
	require.NoError(t, err)
	assert.Len(t, dates, MaxOccurrences)

	_, err = Recurrence{Frequency: Weekly}.Dates(date("2026-03-02"))
	assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))

	past := date("2026-01-01")
	_, err = Recurrence{Frequency: Weekly, Until: &past}.Dates(date("2026-03-02"))
	assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))
}

func TestCreate_Single(t *testing.T) {
	c, repos := newCatalog(t)
	events, err := c.Create(context.Background(), draft(), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsRecurring)
	assert.Empty(t, events[0].RecurringGroupID)

	stored, err := repos.Events.Get(context.Background(), events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Chair yoga", stored.Title)
	assert.Equal(t, 10, *stored.Capacity)
}

func TestCreate_Recurring(t *testing.T) {
	c, _ := newCatalog(t)
	events, err := c.Create(context.Background(), draft(), &Recurrence{Frequency: Weekly, Count: 4})
	require.NoError(t, err)
	require.Len(t, events, 4)
	group := events[0].RecurringGroupID
	require.NotEmpty(t, group)
	for _, e := range events {
		assert.True(t, e.IsRecurring)
		assert.Equal(t, group, e.RecurringGroupID)
	}

	listed, err := c.List(context.Background(), Filter{RecurringGroupID: group})
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestCreate_Invalid(t *testing.T) {
	c, _ := newCatalog(t)
	tests := map[string]func(*Draft){
		"no title":          func(d *Draft) { d.Title = "" },
		"no location":       func(d *Draft) { d.Location = "" },
		"no date":           func(d *Draft) { d.Date = time.Time{} },
		"ends before start": func(d *Draft) { end := models.TimeOfDay(9 * 60); d.EndTime = &end },
		"negative capacity": func(d *Draft) { d.Capacity = intPtr(-1) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			d := draft()
			mutate(&d)
			_, err := c.Create(context.Background(), d, nil)
			assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))
		})
	}

	_, err := c.Create(context.Background(), draft(), &Recurrence{Frequency: "yearly", Count: 2})
	assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))
	_, err = c.Create(context.Background(), draft(), &Recurrence{Frequency: Daily, Count: 53})
	assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	c, repos := newCatalog(t)
	events, err := c.Create(ctx, draft(), nil)
	require.NoError(t, err)
	e := events[0]
	e.CurrentSignups = 6
	require.NoError(t, repos.Events.Update(ctx, e))

	title := "Gentle yoga"
	got, err := c.Update(ctx, e.ID, Patch{Title: &title, ClearEndTime: true})
	require.NoError(t, err)
	assert.Equal(t, "Gentle yoga", got.Title)
	assert.Nil(t, got.EndTime)
	assert.Equal(t, 6, got.CurrentSignups)

	_, err = c.Update(ctx, e.ID, Patch{Capacity: intPtr(5)})
	assert.Equal(t, admission.KindValidation, admission.CanonicalKind(err))

	got, err = c.Update(ctx, e.ID, Patch{ClearCapacity: true})
	require.NoError(t, err)
	assert.Nil(t, got.Capacity)

	_, err = c.Update(ctx, "missing", Patch{Title: &title})
	assert.Equal(t, admission.KindEventNotFound, admission.CanonicalKind(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	series, err := c.Create(ctx, draft(), &Recurrence{Frequency: Daily, Count: 3})
	require.NoError(t, err)
	single, err := c.Create(ctx, draft(), nil)
	require.NoError(t, err)

	n, err := c.Delete(ctx, series[1].ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Delete(ctx, series[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := c.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, single[0].ID, left[0].ID)

	_, err = c.Delete(ctx, series[0].ID, false)
	assert.Equal(t, admission.KindEventNotFound, admission.CanonicalKind(err))
}

func TestList_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	mk := func(day, start, category string) {
		d := draft()
		d.Date = date(day)
		s, _ := models.ParseTimeOfDay(start)
		d.StartTime = s
		d.EndTime = nil
		d.Category = category
		_, err := c.Create(ctx, d, nil)
		require.NoError(t, err)
	}
	mk("2026-03-05", "09:00", "art")
	mk("2026-03-03", "14:00", "sport")
	mk("2026-03-03", "09:00", "art")
	mk("2026-04-01", "09:00", "art")

	all, err := c.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2026-03-03", all[0].Date.Format(models.DateLayout))
	assert.Equal(t, "09:00", all[0].StartTime.String())
	assert.Equal(t, "14:00", all[1].StartTime.String())

	march, err := c.List(ctx, Filter{From: date("2026-03-01"), To: date("2026-03-31"), Category: "ART"})
	require.NoError(t, err)
	assert.Len(t, march, 2)
}
