package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/livequery"
	"clinic-booking/internal/repository"
)

const (
	SlotNotifications  = "notifications"
	SlotAppointments   = "appointments"
	SlotThreads        = "threads"
	SlotMessages       = "messages"
	SlotDoctorRequests = "doctor-requests"
	SlotFeatured       = "featured"
	SlotDoctors        = "doctors"
)

const (
	listLimit     = 100
	messagesLimit = 200
)

var (
	ErrUnknownSlot = errors.New("realtime: unknown slot")
	ErrForbidden   = errors.New("realtime: not allowed")
	ErrBadParams   = errors.New("realtime: invalid slot params")
)

// Lookup reads the documents access checks depend on.
type Lookup interface {
	GetUser(ctx context.Context, userID string) (domain.UserProfile, error)
	GetThread(ctx context.Context, id string) (domain.ChatThread, error)
}

// Catalog turns a named slot and its params into the live query it shows.
type Catalog struct {
	lookup Lookup
}

func NewCatalog(lookup Lookup) (*Catalog, error) {
	if lookup == nil {
		return nil, errors.New("realtime: lookup must not be nil")
	}
	return &Catalog{lookup: lookup}, nil
}

// Build resolves slot for userID. An empty userID yields a spec without identity,
// which the manager answers with an empty result.
func (c *Catalog) Build(ctx context.Context, slot string, params map[string]string, userID string) (livequery.Spec, error) {
	switch slot {
	case SlotFeatured:
		return livequery.Spec{
			Collection: domain.CollectionFeatured,
			OrderBy:    "rank",
			Anonymous:  true,
		}, nil
	case SlotDoctors:
		spec := livequery.Spec{
			Collection: domain.CollectionDoctors,
			OrderBy:    "name",
			Anonymous:  true,
		}
		if s := strings.TrimSpace(params["specialty"]); s != "" {
			spec.Filters = []repository.Filter{repository.Eq("specialty", s)}
		}
		return spec, nil
	case SlotNotifications:
		spec := livequery.Spec{
			Collection: domain.CollectionNotifications,
			OrderBy:    "createdAt",
			Descending: true,
			Limit:      listLimit,
		}
		if userID != "" {
			spec.Collection = domain.NotificationsCollection(userID)
			spec.Identity = userID
		}
		return spec, nil
	case SlotThreads:
		spec := livequery.Spec{
			Collection: domain.CollectionChats,
			OrderBy:    "lastMessageTime",
			Descending: true,
			Limit:      listLimit,
		}
		if userID != "" {
			// Threads the user hid stay out until a new message resets the flag.
			spec.Filters = []repository.Filter{
				{Field: "participants", Op: repository.OpContains, Value: userID},
				repository.Not("deleted."+userID, true),
			}
			spec.Identity = userID
		}
		return spec, nil
	case SlotAppointments:
		return c.appointments(ctx, userID)
	case SlotMessages:
		return c.messages(ctx, params["threadId"], userID)
	case SlotDoctorRequests:
		return c.doctorRequests(ctx, params["status"], userID)
	}
	return livequery.Spec{}, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
}

func (c *Catalog) appointments(ctx context.Context, userID string) (livequery.Spec, error) {
	spec := livequery.Spec{
		Collection: domain.CollectionAppointments,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      listLimit,
	}
	if userID == "" {
		return spec, nil
	}
	profile, err := c.lookup.GetUser(ctx, userID)
	if err != nil {
		return livequery.Spec{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	spec.Collection = domain.PatientAppointmentsCollection(userID)
	if profile.Role == domain.RoleDoctor {
		spec.Collection = domain.DoctorAppointmentsCollection(userID)
	}
	spec.Identity = userID
	return spec, nil
}

func (c *Catalog) messages(ctx context.Context, threadID, userID string) (livequery.Spec, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return livequery.Spec{}, fmt.Errorf("%w: threadId is required", ErrBadParams)
	}
	spec := livequery.Spec{
		Collection: domain.MessagesCollection(threadID),
		OrderBy:    "createdAt",
		Limit:      messagesLimit,
		Tail:       true,
	}
	if userID == "" {
		return spec, nil
	}
	thread, err := c.lookup.GetThread(ctx, threadID)
	if err != nil || !thread.HasParticipant(userID) {
		return livequery.Spec{}, ErrForbidden
	}
	spec.Identity = userID
	return spec, nil
}

func (c *Catalog) doctorRequests(ctx context.Context, status, userID string) (livequery.Spec, error) {
	if status == "" {
		status = string(domain.RequestPending)
	}
	spec := livequery.Spec{
		Collection: domain.CollectionDoctorRequests,
		Filters:    []repository.Filter{repository.Eq("status", status)},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      listLimit,
	}
	if userID == "" {
		return spec, nil
	}
	profile, err := c.lookup.GetUser(ctx, userID)
	if err != nil || profile.Role != domain.RoleAdmin {
		return livequery.Spec{}, ErrForbidden
	}
	spec.Identity = userID
	return spec, nil
}
