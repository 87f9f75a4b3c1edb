package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
	"github.com/hackgods/clinic-queue/internal/queue"
)

type WalkInRequest struct {
	DoctorID  string  `json:"doctorId" validate:"required,uuid"`
	PatientID string  `json:"patientId" validate:"required,uuid"`
	Priority  string  `json:"priority" validate:"omitempty,oneof=NORMAL URGENT"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

type AdmitAppointmentRequest struct {
	DoctorID      string  `json:"doctorId" validate:"required,uuid"`
	AppointmentID string  `json:"appointmentId" validate:"required,uuid"`
	Notes         *string `json:"notes" validate:"omitempty,max=500"`
}

type UpdateQueueStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=WAITING WITH_DOCTOR COMPLETED CANCELLED"`
}

type BookAppointmentRequest struct {
	DoctorID        string    `json:"doctorId" validate:"required,uuid"`
	PatientID       string    `json:"patientId" validate:"required,uuid"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"omitempty,gt=0,lte=480"`
	Notes           *string   `json:"notes" validate:"omitempty,max=500"`
}

type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

type QueueEntryResponse struct {
	ID              uuid.UUID          `json:"id"`
	QueueNumber     string             `json:"queueNumber"`
	DoctorID        uuid.UUID          `json:"doctorId"`
	PatientID       uuid.UUID          `json:"patientId"`
	PatientName     string             `json:"patientName"`
	AppointmentID   *uuid.UUID         `json:"appointmentId,omitempty"`
	AppointmentTime *time.Time         `json:"appointmentTime,omitempty"`
	Type            clinic.QueueType   `json:"type"`
	Priority        clinic.Priority    `json:"priority"`
	Status          clinic.QueueStatus `json:"status"`
	Notes           *string            `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	StartedAt       *time.Time         `json:"startedAt,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
}

type DoctorQueueResponse struct {
	DoctorID       uuid.UUID            `json:"doctorId"`
	DoctorName     string               `json:"doctorName"`
	Specialization *string              `json:"specialization,omitempty"`
	WaitingCount   int                  `json:"waitingCount"`
	Entries        []QueueEntryResponse `json:"entries"`
}

type AppointmentResponse struct {
	ID                uuid.UUID                `json:"id"`
	AppointmentNumber string                   `json:"appointmentNumber"`
	DoctorID          uuid.UUID                `json:"doctorId"`
	PatientID         uuid.UUID                `json:"patientId"`
	PatientName       string                   `json:"patientName"`
	ScheduledAt       time.Time                `json:"scheduledAt"`
	DurationMinutes   int                      `json:"durationMinutes"`
	Status            clinic.AppointmentStatus `json:"status"`
	Notes             *string                  `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toQueueEntryResponse(e clinic.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:              e.ID,
		QueueNumber:     e.Number,
		DoctorID:        e.DoctorID,
		PatientID:       e.PatientID,
		PatientName:     e.PatientName,
		AppointmentID:   e.AppointmentID,
		AppointmentTime: e.AppointmentAt,
		Type:            e.Type,
		Priority:        e.Priority,
		Status:          e.Status,
		Notes:           e.Notes,
		CreatedAt:       e.CreatedAt,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
	}
}

func toDoctorQueueResponse(q queue.DoctorQueue) DoctorQueueResponse {
	entries := make([]QueueEntryResponse, 0, len(q.Entries))
	for _, e := range q.Entries {
		entries = append(entries, toQueueEntryResponse(e))
	}
	return DoctorQueueResponse{
		DoctorID:       q.Doctor.ID,
		DoctorName:     q.Doctor.Name,
		Specialization: q.Doctor.Specialization,
		WaitingCount:   q.WaitingCount,
		Entries:        entries,
	}
}

func toAppointmentResponse(a clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		AppointmentNumber: a.Number,
		DoctorID:          a.DoctorID,
		PatientID:         a.PatientID,
		PatientName:       a.PatientName,
		ScheduledAt:       a.ScheduledAt,
		DurationMinutes:   a.DurationMinutes,
		Status:            a.Status,
		Notes:             a.Notes,
	}
}
