package bookings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduler/internal/catalog"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
)

type fakeCatalog map[uuid.UUID]*catalog.Service

func (f fakeCatalog) Get(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	svc, ok := f[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return svc, nil
}

type fakeSettings struct{ s *clinic.Settings }

func (f fakeSettings) Get(context.Context) (*clinic.Settings, error) {
	cp := *f.s
	return &cp, nil
}

type serviceFixture struct {
	svc     *Service
	repo    *memRepo
	reg     *prometheus.Registry
	therapy *catalog.Service
}

func newServiceFixture(t *testing.T, now time.Time) *serviceFixture {
	t.Helper()
	therapy := &catalog.Service{ID: uuid.New(), Title: "Speech therapy", DurationMinutes: 60, Active: true}
	settings := clinic.DefaultSettings(clinic.Defaults{
		ClinicID:              "clinic-1",
		Name:                  "Little Steps",
		UTCOffset:             "+03:00",
		SlotStepMinutes:       60,
		ReminderOffsets:       []int{1440, 120},
		ThankYouOffsetMinutes: 60,
		EnableReminders:       true,
		EnableThankYou:        true,
	})
	repo := &memRepo{}
	reg := prometheus.NewRegistry()
	svc := NewService(repo, fakeCatalog{therapy.ID: therapy}, fakeSettings{settings}, metrics.NewBookingMetrics(reg), "clinic-1", nil).
		WithClock(func() time.Time { return now })
	return &serviceFixture{svc: svc, repo: repo, reg: reg, therapy: therapy}
}

func (f *serviceFixture) request(date, start string) CreateRequest {
	return CreateRequest{
		ServiceID: f.therapy.ID.String(),
		Date:      date,
		StartTime: start,
		Name:      "Ana",
		Email:     "ana@example.com",
		Phone:     "5551234567",
	}
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, m := range findFamily(families, name) {
		total += m.GetCounter().GetValue()
	}
	return total
}

func findFamily(families []*dto.MetricFamily, name string) []*dto.Metric {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

// Monday 12:00 UTC, 15:00 at the clinic.
var mondayNoon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestServiceCreateSchedulesRemindersAndEvent(t *testing.T) {
	f := newServiceFixture(t, mondayNoon)

	created, err := f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "10:00", created.Booking.StartTime)
	assert.Equal(t, "11:00", created.Booking.EndTime)
	assert.Equal(t, StatusPending, created.Booking.Status)
	assert.Equal(t, "Speech therapy", created.Service.Title)
	assert.Equal(t, 3, created.ReminderTasks)

	var reminders, outbox int
	for _, sql := range f.repo.statements {
		switch {
		case strings.Contains(sql, "INSERT INTO reminder_tasks"):
			reminders++
		case strings.Contains(sql, "INSERT INTO outbox"):
			outbox++
		}
	}
	assert.Equal(t, 3, reminders)
	assert.Equal(t, 1, outbox)
	assert.Equal(t, 1.0, metricValue(t, f.reg, "clinic_bookings_created_total"))
}

func TestServiceCreateConflict(t *testing.T) {
	f := newServiceFixture(t, mondayNoon)

	_, err := f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1.0, metricValue(t, f.reg, "clinic_bookings_conflicts_total"))

	_, err = f.svc.Create(context.Background(), f.request("2025-03-12", "11:00"))
	assert.NoError(t, err, "touching slot is free")
}

func TestServiceCreateRejections(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		req   func(f *serviceFixture) CreateRequest
		field string
	}{
		{
			name:  "ends after close",
			now:   mondayNoon,
			req:   func(f *serviceFixture) CreateRequest { return f.request("2025-03-12", "17:30") },
			field: "startTime",
		},
		{
			name:  "closed day",
			now:   mondayNoon,
			req:   func(f *serviceFixture) CreateRequest { return f.request("2025-03-16", "10:00") },
			field: "startTime",
		},
		{
			name:  "already started",
			now:   time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC),
			req:   func(f *serviceFixture) CreateRequest { return f.request("2025-03-12", "10:00") },
			field: "startTime",
		},
		{
			name: "unknown service",
			now:  mondayNoon,
			req: func(f *serviceFixture) CreateRequest {
				r := f.request("2025-03-12", "10:00")
				r.ServiceID = uuid.NewString()
				return r
			},
			field: "serviceId",
		},
		{
			name: "invalid email",
			now:  mondayNoon,
			req: func(f *serviceFixture) CreateRequest {
				r := f.request("2025-03-12", "10:00")
				r.Email = "nope"
				return r
			},
			field: "email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, tt.now)
			_, err := f.svc.Create(context.Background(), tt.req(f))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.FieldErrors, tt.field)
			assert.Empty(t, f.repo.bookings)
		})
	}
}

func TestServiceAvailabilityExcludesBookedSlot(t *testing.T) {
	f := newServiceFixture(t, mondayNoon)
	_, err := f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	require.NoError(t, err)

	res, err := f.svc.Availability(context.Background(), "2025-03-12", f.therapy.ID.String())
	require.NoError(t, err)
	var got []string
	for _, s := range res.Slots {
		got = append(got, s.Time())
	}
	assert.Equal(t, []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"}, got)

	res, err = f.svc.Availability(context.Background(), "2025-03-16", f.therapy.ID.String())
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.NotEmpty(t, res.Message)
}

func TestServiceAvailabilityHidesPastSlotsToday(t *testing.T) {
	// 11:30 at the clinic.
	f := newServiceFixture(t, time.Date(2025, 3, 12, 8, 30, 0, 0, time.UTC))
	res, err := f.svc.Availability(context.Background(), "2025-03-12", f.therapy.ID.String())
	require.NoError(t, err)
	require.NotEmpty(t, res.Slots)
	assert.Equal(t, "12:00", res.Slots[0].Time())
}

func TestServiceAvailabilityValidation(t *testing.T) {
	f := newServiceFixture(t, mondayNoon)
	_, err := f.svc.Availability(context.Background(), "tomorrow", f.therapy.ID.String())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.FieldErrors, "date")

	_, err = f.svc.Availability(context.Background(), "2025-03-12", "svc")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.FieldErrors, "serviceId")
}

func TestServiceUpdateStatusEmitsEvent(t *testing.T) {
	f := newServiceFixture(t, mondayNoon)
	created, err := f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	require.NoError(t, err)
	f.repo.statements = nil

	b, err := f.svc.UpdateStatus(context.Background(), created.Booking.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	require.Len(t, f.repo.statements, 1)
	assert.Contains(t, f.repo.statements[0], "INSERT INTO outbox")

	// The freed slot can be booked again.
	_, err = f.svc.Create(context.Background(), f.request("2025-03-12", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), created.Booking.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
}
