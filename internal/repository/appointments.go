package repository

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/domain"
)

// slotID keys the reservation that keeps a doctor's time slot single-booked.
func slotID(doctorID, date, timeSlot string) string {
	return doctorID + "#" + date + "#" + timeSlot
}

// mirrors lists the per-owner collections holding a copy of appt. Guest bookings
// have no patient copy.
func mirrors(appt domain.Appointment) []string {
	out := []string{domain.DoctorAppointmentsCollection(appt.DoctorID)}
	if appt.PatientID != "" {
		out = append(out, domain.PatientAppointmentsCollection(appt.PatientID))
	}
	return out
}

// CreateAppointment reserves the slot, stores the appointment with its per-owner
// copies and, when given, the doctor's notification in one batch. A taken slot
// fails with ErrConditionFailed.
func (c *Client) CreateAppointment(ctx context.Context, appt domain.Appointment, notice *domain.Notification) error {
	b := c.newBatch()
	b.create(slotRecord{
		PK:            domain.CollectionSlots,
		SK:            slotID(appt.DoctorID, appt.Date, appt.TimeSlot),
		AppointmentID: appt.ID,
		CreatedAt:     millis(appt.CreatedAt),
	})
	b.create(newAppointmentRecord(domain.CollectionAppointments, appt))
	for _, collection := range mirrors(appt) {
		b.put(newAppointmentRecord(collection, appt))
	}
	if notice != nil {
		b.create(newNotificationRecord(*notice))
	}
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: CreateAppointment: %w", err)
	}
	return nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	item, err := c.getItem(ctx, domain.CollectionAppointments, id, true)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("repository: GetAppointment: %w", err)
	}
	var rec appointmentRecord
	if err := decode(item, &rec); err != nil {
		return domain.Appointment{}, err
	}
	return rec.appointment()
}

// AppointmentsOn returns every appointment of a doctor on a date, cancelled ones included.
func (c *Client) AppointmentsOn(ctx context.Context, doctorID, date string) ([]domain.Appointment, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.DoctorAppointmentsCollection(doctorID),
		Filters:    []Filter{Eq("date", date)},
		OrderBy:    "timeSlot",
		Consistent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: AppointmentsOn: %w", err)
	}
	out := make([]domain.Appointment, 0, len(items))
	for _, item := range items {
		var rec appointmentRecord
		if err := decode(item, &rec); err != nil {
			return nil, fmt.Errorf("repository: AppointmentsOn: %w", err)
		}
		a, err := rec.appointment()
		if err != nil {
			return nil, fmt.Errorf("repository: AppointmentsOn: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// UpdateAppointmentStatus moves appt from its current status to status, copies
// included. Cancelling releases the slot reservation in the same batch.
func (c *Client) UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment, status domain.AppointmentStatus, at time.Time, notice *domain.Notification) error {
	b := c.newBatch()
	b.update(domain.CollectionAppointments, appt.ID, newUpdate().
		set(status, "status").
		set(at, "updatedAt").
		requireEq(appt.Status, "status"))
	for _, collection := range mirrors(appt) {
		b.update(collection, appt.ID, newUpdate().
			set(status, "status").
			set(at, "updatedAt").
			requireExists())
	}
	if status == domain.AppointmentCancelled {
		b.delete(domain.CollectionSlots, slotID(appt.DoctorID, appt.Date, appt.TimeSlot))
	}
	if notice != nil {
		b.create(newNotificationRecord(*notice))
	}
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: UpdateAppointmentStatus: %w", err)
	}
	return nil
}
