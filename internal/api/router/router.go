package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/clinic-scheduler/internal/bookings"
	"github.com/wolfman30/clinic-scheduler/internal/catalog"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/internal/maintenance"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Bookings           *bookings.Handler
	Catalog            *catalog.Handler
	Reminders          *reminders.Handler
	ClinicSettings     *clinic.Handler
	ClinicStats        *clinic.StatsHandler
	AdminDashboard     *handlers.AdminDashboardHandler
	Backup             *maintenance.Handler
	BookingLimiter     *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	AdminJWTSecret     string
	CronSecret         string
	CORSAllowedOrigins []string
	ServiceName        string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints used by the booking form.
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Catalog != nil {
			public.Get("/services", cfg.Catalog.ListServices)
		}
		if cfg.Bookings != nil {
			public.Get("/availability", cfg.Bookings.Availability)
			create := http.Handler(http.HandlerFunc(cfg.Bookings.CreateBooking))
			if cfg.BookingLimiter != nil {
				create = cfg.BookingLimiter.Middleware(create)
			}
			public.Method(http.MethodPost, "/bookings", create)
		}
	})

	// Admin routes are only mounted when a signing secret is configured.
	if cfg.AdminJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			if cfg.Bookings != nil {
				admin.Get("/bookings", cfg.Bookings.ListBookings)
				admin.Get("/bookings/{bookingID}", cfg.Bookings.GetBooking)
				admin.Patch("/bookings/{bookingID}/status", cfg.Bookings.UpdateStatus)
			}
			if cfg.Reminders != nil {
				admin.Get("/bookings/{bookingID}/reminders", cfg.Reminders.ListForBooking)
				admin.Get("/reminders/stats", cfg.Reminders.Stats)
			}
			if cfg.ClinicSettings != nil {
				admin.Mount("/settings", cfg.ClinicSettings.Routes())
			}
			if cfg.ClinicStats != nil {
				admin.Get("/stats", cfg.ClinicStats.GetStats)
			}
			if cfg.AdminDashboard != nil {
				admin.Get("/dashboard", cfg.AdminDashboard.GetDashboardOverview)
				admin.Get("/reminders/failed", cfg.AdminDashboard.ListReminderIssues)
			}
		})
	}

	// Cron triggers. Without a secret every call is rejected.
	r.Route("/cron", func(cron chi.Router) {
		cron.Use(httpmiddleware.CronSecret(cfg.CronSecret))
		if cfg.Reminders != nil {
			cron.Post("/reminders", cfg.Reminders.RunReminders)
			cron.Get("/reminders", cfg.Reminders.RunReminders)
		}
		if cfg.Backup != nil {
			cron.Post("/backup", cfg.Backup.RunBackup)
			cron.Get("/backup", cfg.Backup.RunBackup)
		}
	})

	name := cfg.ServiceName
	if name == "" {
		name = "clinic-api"
	}
	return otelhttp.NewHandler(r, name)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
