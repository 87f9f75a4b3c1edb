package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/clinic"
	"github.com/hackgods/clinic-queue/internal/queue"
)

type AvailabilityService interface {
	DoctorAvailability(ctx context.Context, doctorID uuid.UUID, date string) (*availability.Report, error)
}

type QueueService interface {
	AdmitWalkIn(ctx context.Context, req queue.WalkInRequest) (*clinic.QueueEntry, error)
	AdmitAppointment(ctx context.Context, req queue.AppointmentAdmissionRequest) (*clinic.QueueEntry, error)
	CallNext(ctx context.Context, doctorID uuid.UUID) (*clinic.QueueEntry, error)
	UpdateStatus(ctx context.Context, entryID uuid.UUID, to clinic.QueueStatus) (*clinic.QueueEntry, error)
	Remove(ctx context.Context, entryID uuid.UUID) error
	DoctorQueue(ctx context.Context, doctorID uuid.UUID, date string, status clinic.QueueStatus) (*queue.DoctorQueue, error)
	Board(ctx context.Context, date string) ([]queue.DoctorQueue, error)
}

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*clinic.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (*clinic.Appointment, error)
}

var (
	_ AvailabilityService = (*availability.Service)(nil)
	_ QueueService        = (*queue.Service)(nil)
	_ AppointmentService  = (*appointment.Service)(nil)
)

type RouterConfig struct {
	Availability AvailabilityService
	Queue        QueueService
	Appointments AppointmentService
	Health       *HealthHandler
	Logger       *zap.Logger
	RateLimit    int // requests per second per client IP; 0 disables
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Second))
		}

		r.Route("/doctors/{id}", func(r chi.Router) {
			r.Get("/availability", availabilityHandler(cfg.Availability, log))
			r.Get("/queue", doctorQueueHandler(cfg.Queue, log))
			r.Post("/queue/next", callNextHandler(cfg.Queue, log))
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", boardHandler(cfg.Queue, log))
			r.Post("/walk-in", walkInHandler(cfg.Queue, log))
			r.Post("/appointment", admitAppointmentHandler(cfg.Queue, log))
			r.Patch("/{id}/status", updateQueueStatusHandler(cfg.Queue, log))
			r.Delete("/{id}", removeQueueEntryHandler(cfg.Queue, log))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Appointments, log))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments, log))
			r.Post("/{id}/cancel", appointmentActionHandler(func(r *http.Request, id uuid.UUID) (*clinic.Appointment, error) {
				return cfg.Appointments.Cancel(r.Context(), id)
			}, log))
			r.Post("/{id}/complete", appointmentActionHandler(func(r *http.Request, id uuid.UUID) (*clinic.Appointment, error) {
				return cfg.Appointments.Complete(r.Context(), id)
			}, log))
			r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments, log))
		})
	})

	return r
}
