package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

type Reason string

const (
	ReasonPast        Reason = "PAST"
	ReasonBreak       Reason = "BREAK"
	ReasonAppointment Reason = "APPOINTMENT"
)

// Input is everything Compute needs; it is never mutated.
type Input struct {
	Doctor       clinic.Doctor
	Schedule     []clinic.WeeklyScheduleEntry
	Breaks       []clinic.BreakEntry
	Appointments []clinic.Appointment
	// Date is the calendar day being queried, read in the policy location.
	Date              time.Time
	Now               time.Time
	QueueWaitingCount int
}

type WorkingHours struct {
	Start clinic.Clock `json:"start"`
	End   clinic.Clock `json:"end"`
}

type BreakInfo struct {
	Start clinic.Clock     `json:"start"`
	End   clinic.Clock     `json:"end"`
	Type  clinic.BreakKind `json:"type"`
}

type BookedAppointment struct {
	AppointmentID     uuid.UUID                `json:"appointmentId"`
	AppointmentNumber string                   `json:"appointmentNumber"`
	StartTime         clinic.Clock             `json:"startTime"`
	EndTime           clinic.Clock             `json:"endTime"`
	PatientName       string                   `json:"patientName"`
	Status            clinic.AppointmentStatus `json:"status"`
}

type Slot struct {
	Start             clinic.Clock `json:"start"`
	End               clinic.Clock `json:"end"`
	IsAvailable       bool         `json:"isAvailable"`
	AppointmentID     *uuid.UUID   `json:"appointmentId,omitempty"`
	UnavailableReason *Reason      `json:"unavailableReason"`
}

type Report struct {
	DoctorID               uuid.UUID           `json:"doctorId"`
	Date                   string              `json:"date"`
	IsWorkingDay           bool                `json:"isWorkingDay"`
	WorkingHours           *WorkingHours       `json:"workingHours"`
	Breaks                 []BreakInfo         `json:"breaks"`
	CurrentQueueCount      int                 `json:"currentQueueCount"`
	EstimatedQueueWaitTime int                 `json:"estimatedQueueWaitTime"`
	BookedAppointments     []BookedAppointment `json:"bookedAppointments"`
	AvailableSlots         []Slot              `json:"availableSlots"`
	NextAvailableSlot      *clinic.Clock       `json:"nextAvailableSlot"`
	TotalSlots             int                 `json:"totalSlots"`
	TotalSlotsAvailable    int                 `json:"totalSlotsAvailable"`
	TotalSlotsBooked       int                 `json:"totalSlotsBooked"`
	IsCurrentlyAvailable   bool                `json:"isCurrentlyAvailable"`
	StatusMessage          string              `json:"statusMessage"`
}

// window is a half-open [start, end) range in minutes since midnight.
type window struct {
	start, end int
}

func (w window) overlaps(o window) bool {
	return w.start < o.end && w.end > o.start
}

func (w window) contains(m int) bool {
	return m >= w.start && m < w.end
}

type bookedWindow struct {
	window
	appt clinic.Appointment
}

// day is the validated, policy-local view of an Input for one calendar day.
type day struct {
	date     time.Time
	now      time.Time
	working  *clinic.WeeklyScheduleEntry
	breaks   []clinic.BreakEntry
	booked   []bookedWindow
	duration int
}

func prepare(in Input, date time.Time, p Policy) (*day, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	duration, err := p.ConsultationMinutes(in.Doctor)
	if err != nil {
		return nil, err
	}

	start, end := p.DayBounds(date)
	d := &day{date: start, now: in.Now.In(p.Location), duration: duration}

	weekday := clinic.DayOf(start)
	for i := range in.Schedule {
		e := in.Schedule[i]
		if e.DayOfWeek != weekday || !e.IsWorking {
			continue
		}
		if e.StartTime >= e.EndTime {
			return nil, fmt.Errorf("%w: working hours %s-%s on %s end before they start",
				clinic.ErrValidation, e.StartTime, e.EndTime, e.DayOfWeek)
		}
		d.working = &e
		break
	}

	for _, b := range in.Breaks {
		if b.DayOfWeek != weekday {
			continue
		}
		if b.StartTime >= b.EndTime {
			return nil, fmt.Errorf("%w: break %s-%s on %s ends before it starts",
				clinic.ErrValidation, b.StartTime, b.EndTime, b.DayOfWeek)
		}
		d.breaks = append(d.breaks, b)
	}
	sort.SliceStable(d.breaks, func(i, j int) bool {
		return d.breaks[i].StartTime < d.breaks[j].StartTime
	})

	for _, a := range in.Appointments {
		if !a.Status.OccupiesSlot() || a.ScheduledAt.Before(start) || !a.ScheduledAt.Before(end) {
			continue
		}
		m := clinic.ClockOf(a.ScheduledAt.In(p.Location)).Minutes()
		d.booked = append(d.booked, bookedWindow{
			window: window{start: m, end: m + a.DurationMinutes},
			appt:   a,
		})
	}
	sort.SliceStable(d.booked, func(i, j int) bool {
		bi, bj := d.booked[i], d.booked[j]
		if !bi.appt.ScheduledAt.Equal(bj.appt.ScheduledAt) {
			return bi.appt.ScheduledAt.Before(bj.appt.ScheduledAt)
		}
		return bi.appt.ID.String() < bj.appt.ID.String()
	})

	return d, nil
}

func (d *day) isToday() bool {
	y1, m1, d1 := d.date.Date()
	y2, m2, d2 := d.now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d *day) isPastDate() bool {
	y, m, dd := d.now.Date()
	return d.date.Before(time.Date(y, m, dd, 0, 0, 0, 0, d.now.Location()))
}

func (d *day) nowMinute() int {
	return clinic.ClockOf(d.now).Minutes()
}

// open is the working window shrunk to whole minutes, so sub-minute hours
// never yield a slot outside them.
func (d *day) open() window {
	return window{start: d.working.StartTime.CeilMinutes(), end: d.working.EndTime.Minutes()}
}

// breakWindow widens a break to whole minutes.
func breakWindow(b clinic.BreakEntry) window {
	return window{start: b.StartTime.Minutes(), end: b.EndTime.CeilMinutes()}
}

func (d *day) breakAt(w window) bool {
	for _, b := range d.breaks {
		if w.overlaps(breakWindow(b)) {
			return true
		}
	}
	return false
}

func (d *day) bookingAt(w window, exclude uuid.UUID) *clinic.Appointment {
	for i := range d.booked {
		b := d.booked[i]
		if exclude != uuid.Nil && b.appt.ID == exclude {
			continue
		}
		if w.overlaps(b.window) {
			return &d.booked[i].appt
		}
	}
	return nil
}

// Compute builds the availability report for in.Doctor on in.Date.
// It is a pure function of its arguments.
func Compute(in Input, p Policy) (*Report, error) {
	d, err := prepare(in, in.Date, p)
	if err != nil {
		return nil, err
	}

	report := &Report{
		DoctorID:           in.Doctor.ID,
		Date:               d.date.Format(time.DateOnly),
		Breaks:             []BreakInfo{},
		BookedAppointments: []BookedAppointment{},
		AvailableSlots:     []Slot{},
	}

	if d.working == nil {
		report.StatusMessage = MessageNotWorking
		return report, nil
	}

	report.IsWorkingDay = true
	report.WorkingHours = &WorkingHours{Start: d.working.StartTime, End: d.working.EndTime}
	report.CurrentQueueCount = in.QueueWaitingCount
	report.EstimatedQueueWaitTime = in.QueueWaitingCount * p.AverageConsultationMinutes

	for _, b := range d.breaks {
		report.Breaks = append(report.Breaks, BreakInfo{Start: b.StartTime, End: b.EndTime, Type: b.Kind})
	}
	for _, b := range d.booked {
		report.BookedAppointments = append(report.BookedAppointments, BookedAppointment{
			AppointmentID:     b.appt.ID,
			AppointmentNumber: b.appt.Number,
			StartTime:         clinic.ClockFromMinutes(b.start),
			EndTime:           clinic.ClockFromMinutes(b.end),
			PatientName:       b.appt.PatientName,
			Status:            b.appt.Status,
		})
	}

	report.AvailableSlots = d.slots()
	for i := range report.AvailableSlots {
		s := report.AvailableSlots[i]
		switch {
		case s.IsAvailable:
			report.TotalSlotsAvailable++
			if report.NextAvailableSlot == nil {
				start := s.Start
				report.NextAvailableSlot = &start
			}
		case *s.UnavailableReason == ReasonAppointment:
			report.TotalSlotsBooked++
		}
	}
	report.TotalSlots = len(report.AvailableSlots)

	report.IsCurrentlyAvailable = d.currentlyAvailable()
	report.StatusMessage = p.statusMessage(report.IsCurrentlyAvailable, in.QueueWaitingCount, report.TotalSlotsAvailable)

	return report, nil
}

func (d *day) slots() []Slot {
	open := d.open()
	pastDate := d.isPastDate()
	today := d.isToday()
	nowM := d.nowMinute()

	slots := make([]Slot, 0, max(0, (open.end-open.start)/d.duration))
	for m := open.start; m+d.duration <= open.end; m += d.duration {
		w := window{start: m, end: m + d.duration}
		slot := Slot{
			Start: clinic.ClockFromMinutes(w.start),
			End:   clinic.ClockFromMinutes(w.end),
		}

		var reason Reason
		if pastDate || (today && w.start < nowM) {
			reason = ReasonPast
		} else if d.breakAt(w) {
			reason = ReasonBreak
		} else if appt := d.bookingAt(w, uuid.Nil); appt != nil {
			reason = ReasonAppointment
			id := appt.ID
			slot.AppointmentID = &id
		}

		if reason == "" {
			slot.IsAvailable = true
		} else {
			slot.UnavailableReason = &reason
		}
		slots = append(slots, slot)
	}
	return slots
}

func (d *day) currentlyAvailable() bool {
	if !d.isToday() {
		return false
	}
	nowM := d.nowMinute()
	if !d.open().contains(nowM) {
		return false
	}
	for _, b := range d.breaks {
		if breakWindow(b).contains(nowM) {
			return false
		}
	}
	for _, b := range d.booked {
		if b.contains(nowM) {
			return false
		}
	}
	return true
}

// CheckWindow reports whether [start, start+minutes) can be booked: it must sit
// inside working hours on a working day, lie in the future and avoid every break
// and occupying appointment other than exclude.
func CheckWindow(in Input, start time.Time, minutes int, exclude uuid.UUID, p Policy) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", clinic.ErrValidation, minutes)
	}
	d, err := prepare(in, start, p)
	if err != nil {
		return err
	}
	if d.working == nil {
		return fmt.Errorf("%w: doctor does not work on %s", clinic.ErrSlotUnavailable, clinic.DayOf(d.date))
	}

	local := start.In(p.Location)
	m := clinic.ClockOf(local).Minutes()
	w := window{start: m, end: m + minutes}

	open := d.open()
	if w.start < open.start || w.end > open.end {
		return fmt.Errorf("%w: %s is outside working hours %s-%s",
			clinic.ErrSlotUnavailable, clinic.ClockOf(local), d.working.StartTime, d.working.EndTime)
	}
	if local.Before(d.now) {
		return fmt.Errorf("%w: %s is in the past", clinic.ErrSlotUnavailable, local.Format(time.DateTime))
	}
	if d.breakAt(w) {
		return fmt.Errorf("%w: overlaps a break", clinic.ErrSlotUnavailable)
	}
	if appt := d.bookingAt(w, exclude); appt != nil {
		return fmt.Errorf("%w: overlaps appointment %s", clinic.ErrSlotUnavailable, appt.Number)
	}
	return nil
}
