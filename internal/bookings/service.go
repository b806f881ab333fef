package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/catalog"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var bookingsTracer = otel.Tracer("clinic.internal.bookings")

// Store is the booking persistence the service needs.
type Store interface {
	Create(ctx context.Context, b *Booking, after AfterInsertFunc) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByDate(ctx context.Context, date string) ([]Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, after StatusChangeFunc) (*Booking, error)
}

// ServiceCatalog looks up bookable services.
type ServiceCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*catalog.Service, error)
}

// SettingsProvider returns the current clinic settings.
type SettingsProvider interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// Service runs availability queries and booking creation.
type Service struct {
	store    Store
	catalog  ServiceCatalog
	settings SettingsProvider
	metrics  *metrics.BookingMetrics
	clinicID string
	now      func() time.Time
	logger   *logging.Logger
}

// NewService constructs a bookings service.
func NewService(store Store, cat ServiceCatalog, settings SettingsProvider, m *metrics.BookingMetrics, clinicID string, logger *logging.Logger) *Service {
	if store == nil || cat == nil || settings == nil {
		panic("bookings: store, catalog and settings required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		catalog:  cat,
		settings: settings,
		metrics:  m,
		clinicID: clinicID,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type clinicView struct {
	settings *clinic.Settings
	hours    availability.WorkingHours
	loc      *time.Location
}

func (s *Service) loadClinic(ctx context.Context) (*clinicView, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: load settings: %w", err)
	}
	hours, err := settings.WorkingHours()
	if err != nil {
		return nil, fmt.Errorf("bookings: working hours: %v", err)
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, fmt.Errorf("bookings: clinic offset: %v", err)
	}
	return &clinicView{settings: settings, hours: hours, loc: loc}, nil
}

func (s *Service) lookupService(ctx context.Context, rawID string) (*catalog.Service, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fieldError("serviceId", "must be a valid service id")
	}
	svc, err := s.catalog.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fieldError("serviceId", "unknown service")
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Availability returns the bookable start times for a service on date.
func (s *Service) Availability(ctx context.Context, date, serviceID string) (availability.Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.availability")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.date", date), attribute.String("clinic.service_id", serviceID))
	started := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(started).Seconds()) }()

	if _, err := schedule.ParseDate(date); err != nil {
		return availability.Result{}, fieldError("date", "must be a date in YYYY-MM-DD format")
	}
	svc, err := s.lookupService(ctx, serviceID)
	if err != nil {
		return availability.Result{}, err
	}
	view, err := s.loadClinic(ctx)
	if err != nil {
		span.RecordError(err)
		return availability.Result{}, err
	}
	existing, err := s.store.ListByDate(ctx, date)
	if err != nil {
		span.RecordError(err)
		return availability.Result{}, err
	}

	res, err := availability.NewCalculator(view.settings.SlotStepMinutes).Slots(availability.Query{
		Date:            date,
		DurationMinutes: svc.DurationMinutes,
		Hours:           view.hours,
		Existing:        toExisting(existing),
		Now:             s.now().In(view.loc),
	})
	if err != nil {
		span.RecordError(err)
		return availability.Result{}, err
	}
	span.SetAttributes(attribute.Int("clinic.slots", len(res.Slots)))
	return res, nil
}

// Created is the result of a successful booking.
type Created struct {
	Booking       *Booking
	Service       *catalog.Service
	ReminderTasks int
}

// Create validates the request, re-checks the slot inside the booking
// transaction and persists the booking with its reminder tasks and outbox event.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("clinic.service_id", req.ServiceID),
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.start_time", req.StartTime),
	)

	svc, err := s.lookupService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	view, err := s.loadClinic(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	date, _ := schedule.ParseDate(req.Date)
	start, _ := schedule.ParseClock(req.StartTime)
	slot := schedule.Interval{Start: start, End: start.Add(svc.DurationMinutes)}
	if !availability.Fits(view.hours, date, slot) {
		return nil, fieldError("startTime", "is outside working hours")
	}
	now := s.now()
	if !schedule.Combine(date, start, view.loc).After(now) {
		return nil, fieldError("startTime", "must be in the future")
	}
	policy, err := reminders.PolicyFromSettings(view.settings)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		ServiceID: svc.ID,
		Date:      req.Date,
		StartTime: slot.Start.String(),
		EndTime:   slot.End.String(),
		Status:    StatusPending,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		ChildName: req.ChildName,
		ChildAge:  req.ChildAge,
		Notes:     req.Notes,
	}

	var taskCount int
	err = s.store.Create(ctx, b, func(ctx context.Context, tx Execer, b *Booking) error {
		tasks, err := reminders.ScheduleFor(reminders.Appointment{
			BookingID: b.ID,
			Date:      b.Date,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
		}, policy, now)
		if err != nil {
			return err
		}
		if err := reminders.InsertTasks(ctx, tx, tasks); err != nil {
			return err
		}
		taskCount = len(tasks)
		_, err = events.AppendCanonicalEvent(ctx, tx, s.clinicID, "booking:"+b.ID.String(), middleware.GetReqID(ctx), events.BookingCreatedV1{
			BookingID:     b.ID.String(),
			ServiceID:     svc.ID.String(),
			ServiceTitle:  svc.Title,
			Date:          b.Date,
			StartTime:     b.StartTime,
			EndTime:       b.EndTime,
			Status:        string(b.Status),
			ReminderTasks: len(tasks),
			CreatedAt:     b.CreatedAt,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveConflict()
			s.logger.Info("booking conflict", "date", req.Date, "start_time", req.StartTime, "error", err)
			span.SetAttributes(attribute.Bool("clinic.conflict", true))
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create booking")
		return nil, err
	}

	s.metrics.ObserveCreated(svc.Title)
	span.SetAttributes(attribute.String("clinic.booking_id", b.ID.String()))
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"service_id", svc.ID,
		"date", b.Date,
		"start_time", b.StartTime,
		"reminder_tasks", taskCount,
	)
	return &Created{Booking: b, Service: svc, ReminderTasks: taskCount}, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// ListByDate returns every booking of a date.
func (s *Service) ListByDate(ctx context.Context, date string) ([]Booking, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, fieldError("date", "must be a date in YYYY-MM-DD format")
	}
	return s.store.ListByDate(ctx, date)
}

// UpdateStatus changes a booking's status and records the transition in the outbox.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id.String()), attribute.String("clinic.status", string(status)))

	b, err := s.store.UpdateStatus(ctx, id, status, func(ctx context.Context, tx Execer, prev Status, b *Booking) error {
		_, err := events.AppendCanonicalEvent(ctx, tx, s.clinicID, "booking:"+b.ID.String(), middleware.GetReqID(ctx), events.BookingStatusChangedV1{
			BookingID: b.ID.String(),
			Date:      b.Date,
			StartTime: b.StartTime,
			From:      string(prev),
			To:        string(b.Status),
			ChangedAt: b.UpdatedAt,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
			span.RecordError(err)
		}
		return nil, err
	}
	s.logger.Info("booking status changed", "booking_id", id, "status", status)
	return b, nil
}
