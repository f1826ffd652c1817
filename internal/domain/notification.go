package domain

import "time"

type NotificationType string

const (
	NotificationBooking     NotificationType = "booking"
	NotificationBookingInfo NotificationType = "booking_status"
	NotificationChat        NotificationType = "chat"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	RefID     string           `json:"refId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
