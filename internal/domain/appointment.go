package domain

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked time slot with a doctor. PatientID is empty for guest bookings.
type Appointment struct {
	ID            string            `json:"id"`
	BookingNumber string            `json:"bookingNumber"`
	DoctorID      string            `json:"doctorId"`
	PatientID     string            `json:"patientId"`
	PatientName   string            `json:"patientName"`
	PatientPhone  string            `json:"patientPhone"`
	Date          string            `json:"date"`
	TimeSlot      string            `json:"timeSlot"`
	Status        AppointmentStatus `json:"status"`
	Notes         string            `json:"notes"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
