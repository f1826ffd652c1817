package repository

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"clinic-booking/internal/domain"
)

// Records are the stored shape of each document. Timestamps are epoch
// milliseconds, 0 for the zero time.

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// stored converts a Go value to the form it is stored in.
func stored(v any) any {
	if t, ok := v.(time.Time); ok {
		return millis(t)
	}
	return v
}

func decode(item map[string]types.AttributeValue, out any) error {
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("repository: decode %T: %w", out, err)
	}
	return nil
}

type keyRecord struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

type userRecord struct {
	PK        string      `dynamodbav:"PK"`
	SK        string      `dynamodbav:"SK"`
	Email     string      `dynamodbav:"email"`
	Name      string      `dynamodbav:"name"`
	Phone     string      `dynamodbav:"phone"`
	Role      domain.Role `dynamodbav:"role"`
	CreatedAt int64       `dynamodbav:"createdAt"`
}

func newUserRecord(u domain.UserProfile) userRecord {
	return userRecord{
		PK:        domain.CollectionUsers,
		SK:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: millis(u.CreatedAt),
	}
}

func (r userRecord) profile() (domain.UserProfile, error) {
	if r.Role == "" {
		return domain.UserProfile{}, fmt.Errorf("repository: user %q has no role", r.SK)
	}
	return domain.UserProfile{
		ID:        r.SK,
		Email:     r.Email,
		Name:      r.Name,
		Phone:     r.Phone,
		Role:      r.Role,
		CreatedAt: fromMillis(r.CreatedAt),
	}, nil
}

type doctorRecord struct {
	PK                    string `dynamodbav:"PK"`
	SK                    string `dynamodbav:"SK"`
	Name                  string `dynamodbav:"name"`
	Email                 string `dynamodbav:"email"`
	Phone                 string `dynamodbav:"phone"`
	Specialty             string `dynamodbav:"specialty"`
	Bio                   string `dynamodbav:"bio"`
	ClinicAddress         string `dynamodbav:"clinicAddress"`
	Fee                   int    `dynamodbav:"fee"`
	SubscriptionPlan      string `dynamodbav:"subscriptionPlan"`
	SubscriptionExpiresAt int64  `dynamodbav:"subscriptionExpiresAt"`
	CreatedAt             int64  `dynamodbav:"createdAt"`
	UpdatedAt             int64  `dynamodbav:"updatedAt"`
}

func newDoctorRecord(d domain.Doctor) doctorRecord {
	return doctorRecord{
		PK:                    domain.CollectionDoctors,
		SK:                    d.ID,
		Name:                  d.Name,
		Email:                 d.Email,
		Phone:                 d.Phone,
		Specialty:             d.Specialty,
		Bio:                   d.Bio,
		ClinicAddress:         d.ClinicAddress,
		Fee:                   d.Fee,
		SubscriptionPlan:      d.SubscriptionPlan,
		SubscriptionExpiresAt: millis(d.SubscriptionExpiresAt),
		CreatedAt:             millis(d.CreatedAt),
		UpdatedAt:             millis(d.UpdatedAt),
	}
}

func (r doctorRecord) doctor() domain.Doctor {
	return domain.Doctor{
		ID:                    r.SK,
		Name:                  r.Name,
		Email:                 r.Email,
		Phone:                 r.Phone,
		Specialty:             r.Specialty,
		Bio:                   r.Bio,
		ClinicAddress:         r.ClinicAddress,
		Fee:                   r.Fee,
		SubscriptionPlan:      r.SubscriptionPlan,
		SubscriptionExpiresAt: fromMillis(r.SubscriptionExpiresAt),
		CreatedAt:             fromMillis(r.CreatedAt),
		UpdatedAt:             fromMillis(r.UpdatedAt),
	}
}

type doctorRequestRecord struct {
	PK         string               `dynamodbav:"PK"`
	SK         string               `dynamodbav:"SK"`
	Name       string               `dynamodbav:"name"`
	Email      string               `dynamodbav:"email"`
	Phone      string               `dynamodbav:"phone"`
	Specialty  string               `dynamodbav:"specialty"`
	Status     domain.RequestStatus `dynamodbav:"status"`
	CreatedAt  int64                `dynamodbav:"createdAt"`
	ReviewedBy string               `dynamodbav:"reviewedBy"`
	ReviewedAt int64                `dynamodbav:"reviewedAt"`
	DoctorID   string               `dynamodbav:"doctorId"`
}

func newDoctorRequestRecord(r domain.DoctorRequest) doctorRequestRecord {
	return doctorRequestRecord{
		PK:         domain.CollectionDoctorRequests,
		SK:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Specialty:  r.Specialty,
		Status:     r.Status,
		CreatedAt:  millis(r.CreatedAt),
		ReviewedBy: r.ReviewedBy,
		ReviewedAt: millis(r.ReviewedAt),
		DoctorID:   r.DoctorID,
	}
}

func (r doctorRequestRecord) request() (domain.DoctorRequest, error) {
	if r.Email == "" {
		return domain.DoctorRequest{}, fmt.Errorf("repository: doctor request %q has no email", r.SK)
	}
	return domain.DoctorRequest{
		ID:         r.SK,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Specialty:  r.Specialty,
		Status:     r.Status,
		CreatedAt:  fromMillis(r.CreatedAt),
		ReviewedBy: r.ReviewedBy,
		ReviewedAt: fromMillis(r.ReviewedAt),
		DoctorID:   r.DoctorID,
	}, nil
}

type appointmentRecord struct {
	PK            string                   `dynamodbav:"PK"`
	SK            string                   `dynamodbav:"SK"`
	BookingNumber string                   `dynamodbav:"bookingNumber"`
	DoctorID      string                   `dynamodbav:"doctorId"`
	PatientID     string                   `dynamodbav:"patientId"`
	PatientName   string                   `dynamodbav:"patientName"`
	PatientPhone  string                   `dynamodbav:"patientPhone"`
	Date          string                   `dynamodbav:"date"`
	TimeSlot      string                   `dynamodbav:"timeSlot"`
	Status        domain.AppointmentStatus `dynamodbav:"status"`
	Notes         string                   `dynamodbav:"notes"`
	CreatedAt     int64                    `dynamodbav:"createdAt"`
	UpdatedAt     int64                    `dynamodbav:"updatedAt"`
}

// newAppointmentRecord stores a in collection: the canonical appointments
// collection or one of its per-owner mirrors.
func newAppointmentRecord(collection string, a domain.Appointment) appointmentRecord {
	return appointmentRecord{
		PK:            collection,
		SK:            a.ID,
		BookingNumber: a.BookingNumber,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		PatientName:   a.PatientName,
		PatientPhone:  a.PatientPhone,
		Date:          a.Date,
		TimeSlot:      a.TimeSlot,
		Status:        a.Status,
		Notes:         a.Notes,
		CreatedAt:     millis(a.CreatedAt),
		UpdatedAt:     millis(a.UpdatedAt),
	}
}

func (r appointmentRecord) appointment() (domain.Appointment, error) {
	if r.DoctorID == "" || r.TimeSlot == "" {
		return domain.Appointment{}, fmt.Errorf("repository: appointment %q has no doctor or time slot", r.SK)
	}
	return domain.Appointment{
		ID:            r.SK,
		BookingNumber: r.BookingNumber,
		DoctorID:      r.DoctorID,
		PatientID:     r.PatientID,
		PatientName:   r.PatientName,
		PatientPhone:  r.PatientPhone,
		Date:          r.Date,
		TimeSlot:      r.TimeSlot,
		Status:        r.Status,
		Notes:         r.Notes,
		CreatedAt:     fromMillis(r.CreatedAt),
		UpdatedAt:     fromMillis(r.UpdatedAt),
	}, nil
}

type slotRecord struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	AppointmentID string `dynamodbav:"appointmentId"`
	CreatedAt     int64  `dynamodbav:"createdAt"`
}

type notificationRecord struct {
	PK        string                  `dynamodbav:"PK"`
	SK        string                  `dynamodbav:"SK"`
	UserID    string                  `dynamodbav:"userId"`
	Type      domain.NotificationType `dynamodbav:"type"`
	Title     string                  `dynamodbav:"title"`
	Body      string                  `dynamodbav:"body"`
	RefID     string                  `dynamodbav:"refId"`
	Read      bool                    `dynamodbav:"read"`
	CreatedAt int64                   `dynamodbav:"createdAt"`
}

func newNotificationRecord(n domain.Notification) notificationRecord {
	return notificationRecord{
		PK:        domain.NotificationsCollection(n.UserID),
		SK:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		RefID:     n.RefID,
		Read:      n.Read,
		CreatedAt: millis(n.CreatedAt),
	}
}

type threadRecord struct {
	PK              string              `dynamodbav:"PK"`
	SK              string              `dynamodbav:"SK"`
	ParticipantA    string              `dynamodbav:"participantA"`
	ParticipantB    string              `dynamodbav:"participantB"`
	Participants    []string            `dynamodbav:"participants"`
	Status          domain.ThreadStatus `dynamodbav:"status"`
	LastMessage     string              `dynamodbav:"lastMessage"`
	LastMessageTime int64               `dynamodbav:"lastMessageTime"`
	Unread          map[string]int      `dynamodbav:"unread"`
	Deleted         map[string]bool     `dynamodbav:"deleted"`
	CreatedAt       int64               `dynamodbav:"createdAt"`
}

// newThreadRecord always writes both per-participant maps so later updates can
// address unread.<uid> and deleted.<uid> directly.
func newThreadRecord(t domain.ChatThread) threadRecord {
	unread := t.Unread
	if unread == nil {
		unread = map[string]int{t.ParticipantA: 0, t.ParticipantB: 0}
	}
	deleted := t.Deleted
	if deleted == nil {
		deleted = map[string]bool{t.ParticipantA: false, t.ParticipantB: false}
	}
	return threadRecord{
		PK:              domain.CollectionChats,
		SK:              t.ID,
		ParticipantA:    t.ParticipantA,
		ParticipantB:    t.ParticipantB,
		Participants:    []string{t.ParticipantA, t.ParticipantB},
		Status:          t.Status,
		LastMessage:     t.LastMessage,
		LastMessageTime: millis(t.LastMessageTime),
		Unread:          unread,
		Deleted:         deleted,
		CreatedAt:       millis(t.CreatedAt),
	}
}

func (r threadRecord) thread() (domain.ChatThread, error) {
	if r.ParticipantA == "" || r.ParticipantB == "" {
		return domain.ChatThread{}, fmt.Errorf("repository: thread %q is missing a participant", r.SK)
	}
	unread := r.Unread
	if unread == nil {
		unread = map[string]int{}
	}
	deleted := r.Deleted
	if deleted == nil {
		deleted = map[string]bool{}
	}
	return domain.ChatThread{
		ID:              r.SK,
		ParticipantA:    r.ParticipantA,
		ParticipantB:    r.ParticipantB,
		Status:          r.Status,
		LastMessage:     r.LastMessage,
		LastMessageTime: fromMillis(r.LastMessageTime),
		Unread:          unread,
		Deleted:         deleted,
		CreatedAt:       fromMillis(r.CreatedAt),
	}, nil
}

type messageRecord struct {
	PK         string      `dynamodbav:"PK"`
	SK         string      `dynamodbav:"SK"`
	ThreadID   string      `dynamodbav:"threadId"`
	SenderID   string      `dynamodbav:"senderId"`
	SenderRole domain.Role `dynamodbav:"senderRole"`
	Text       string      `dynamodbav:"text"`
	ImageRef   string      `dynamodbav:"imageRef"`
	CreatedAt  int64       `dynamodbav:"createdAt"`
	Read       bool        `dynamodbav:"read"`
}

func newMessageRecord(m domain.Message) messageRecord {
	return messageRecord{
		PK:         domain.MessagesCollection(m.ThreadID),
		SK:         m.ID,
		ThreadID:   m.ThreadID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Text:       m.Text,
		ImageRef:   m.ImageRef,
		CreatedAt:  millis(m.CreatedAt),
		Read:       m.Read,
	}
}

type featuredRecord struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Rank    int    `dynamodbav:"rank"`
	AddedAt int64  `dynamodbav:"addedAt"`
	AddedBy string `dynamodbav:"addedBy"`
}

func newFeaturedRecord(e domain.FeaturedEntry) featuredRecord {
	return featuredRecord{
		PK:      domain.CollectionFeatured,
		SK:      e.EntityID,
		Rank:    e.Rank,
		AddedAt: millis(e.AddedAt),
		AddedBy: e.AddedBy,
	}
}

func (r featuredRecord) entry() (domain.FeaturedEntry, error) {
	if r.Rank <= 0 {
		return domain.FeaturedEntry{}, fmt.Errorf("repository: featured entry %q has no rank", r.SK)
	}
	return domain.FeaturedEntry{
		EntityID: r.SK,
		Rank:     r.Rank,
		AddedAt:  fromMillis(r.AddedAt),
		AddedBy:  r.AddedBy,
	}, nil
}

// highWaterRecord holds the largest featured rank ever assigned.
type highWaterRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	HighWater int    `dynamodbav:"highWater"`
}
