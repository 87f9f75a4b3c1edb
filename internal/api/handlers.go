package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/clinic"
	"github.com/hackgods/clinic-queue/internal/queue"
)

func availabilityHandler(svc AvailabilityService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "doctor_id")
		if !ok {
			return
		}

		report, err := svc.DoctorAvailability(r.Context(), doctorID, r.URL.Query().Get("date"))
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func doctorQueueHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "doctor_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		status := clinic.QueueStatus(q.Get("status"))
		if status != "" && !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of WAITING, WITH_DOCTOR, COMPLETED, CANCELLED")
			return
		}

		dq, err := svc.DoctorQueue(r.Context(), doctorID, q.Get("date"), status)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorQueueResponse(*dq))
	}
}

func boardHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := svc.Board(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			handleError(w, r, log, err)
			return
		}

		resp := make([]DoctorQueueResponse, 0, len(board))
		for _, dq := range board {
			resp = append(resp, toDoctorQueueResponse(dq))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func walkInHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WalkInRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		entry, err := svc.AdmitWalkIn(r.Context(), queue.WalkInRequest{
			DoctorID:  uuid.MustParse(req.DoctorID),
			PatientID: uuid.MustParse(req.PatientID),
			Priority:  clinic.Priority(req.Priority),
			Notes:     req.Notes,
		})
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toQueueEntryResponse(*entry))
	}
}

func admitAppointmentHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdmitAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		entry, err := svc.AdmitAppointment(r.Context(), queue.AppointmentAdmissionRequest{
			DoctorID:      uuid.MustParse(req.DoctorID),
			AppointmentID: uuid.MustParse(req.AppointmentID),
			Notes:         req.Notes,
		})
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toQueueEntryResponse(*entry))
	}
}

func callNextHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "doctor_id")
		if !ok {
			return
		}

		entry, err := svc.CallNext(r.Context(), doctorID)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(*entry))
	}
}

func updateQueueStatusHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "queue_entry_id")
		if !ok {
			return
		}

		var req UpdateQueueStatusRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		entry, err := svc.UpdateStatus(r.Context(), entryID, clinic.QueueStatus(req.Status))
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(*entry))
	}
}

func removeQueueEntryHandler(svc QueueService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "queue_entry_id")
		if !ok {
			return
		}

		if err := svc.Remove(r.Context(), entryID); err != nil {
			handleError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bookAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			DoctorID:        uuid.MustParse(req.DoctorID),
			PatientID:       uuid.MustParse(req.PatientID),
			ScheduledAt:     req.ScheduledAt,
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
		})
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// appointmentActionHandler serves the body-less cancel and complete actions.
func appointmentActionHandler(action func(r *http.Request, id uuid.UUID) (*clinic.Appointment, error), log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := action(r, id)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func rescheduleAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.ScheduledAt)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}
