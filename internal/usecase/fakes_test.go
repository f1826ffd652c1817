package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/repository"
)

// memStore is an in-memory stand-in for the DynamoDB client. Batch methods apply
// all or nothing, like the real transactions.
type memStore struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error

	users         map[string]domain.UserProfile
	doctors       map[string]domain.Doctor
	requests      map[string]domain.DoctorRequest
	appointments  map[string]domain.Appointment
	slots         map[string]string
	notifications map[string]domain.Notification
	threads       map[string]domain.ChatThread
	messages      map[string]map[string]domain.Message
	featured      map[string]domain.FeaturedEntry
	highWater     int
	swaps         int
}

func newMemStore() *memStore {
	return &memStore{
		fail:          map[string]error{},
		users:         map[string]domain.UserProfile{},
		doctors:       map[string]domain.Doctor{},
		requests:      map[string]domain.DoctorRequest{},
		appointments:  map[string]domain.Appointment{},
		slots:         map[string]string{},
		notifications: map[string]domain.Notification{},
		threads:       map[string]domain.ChatThread{},
		messages:      map[string]map[string]domain.Message{},
		featured:      map[string]domain.FeaturedEntry{},
	}
}

func (m *memStore) enter(op string) error {
	m.mu.Lock()
	m.calls++
	return m.fail[op]
}

func notFound(what string) error {
	return fmt.Errorf("memstore: %s: %w", what, repository.ErrNotFound)
}

func conditionFailed(what string) error {
	return fmt.Errorf("memstore: %s: %w", what, repository.ErrConditionFailed)
}

func (m *memStore) addUser(id string, role domain.Role) {
	m.users[id] = domain.UserProfile{ID: id, Email: id + "@example.com", Name: "User " + id, Phone: "0100" + id, Role: role}
	if role == domain.RoleDoctor {
		m.doctors[id] = domain.Doctor{ID: id, Name: "Dr " + id, Specialty: "cardiology"}
	}
}

func (m *memStore) notificationsFor(userID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (m *memStore) GetUser(_ context.Context, id string) (domain.UserProfile, error) {
	err := m.enter("GetUser")
	defer m.mu.Unlock()
	if err != nil {
		return domain.UserProfile{}, err
	}
	u, ok := m.users[id]
	if !ok {
		return domain.UserProfile{}, notFound("user")
	}
	return u, nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	err := m.enter("DeleteUser")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) GetDoctor(_ context.Context, id string) (domain.Doctor, error) {
	err := m.enter("GetDoctor")
	defer m.mu.Unlock()
	if err != nil {
		return domain.Doctor{}, err
	}
	d, ok := m.doctors[id]
	if !ok {
		return domain.Doctor{}, notFound("doctor")
	}
	return d, nil
}

func (m *memStore) ListDoctors(_ context.Context, specialty string) ([]domain.Doctor, error) {
	err := m.enter("ListDoctors")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.Doctor
	for _, d := range m.doctors {
		if specialty == "" || d.Specialty == specialty {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateDoctorProfile(_ context.Context, id string, upd domain.DoctorProfileUpdate, at time.Time) error {
	err := m.enter("UpdateDoctorProfile")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	d, ok := m.doctors[id]
	if !ok {
		return conditionFailed("doctor")
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Bio != nil {
		d.Bio = *upd.Bio
	}
	if upd.Fee != nil {
		d.Fee = *upd.Fee
	}
	d.UpdatedAt = at
	m.doctors[id] = d
	return nil
}

func (m *memStore) CreateDoctorRequest(_ context.Context, req domain.DoctorRequest) error {
	err := m.enter("CreateDoctorRequest")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := m.requests[req.ID]; ok {
		return conditionFailed("request exists")
	}
	m.requests[req.ID] = req
	return nil
}

func (m *memStore) GetDoctorRequest(_ context.Context, id string) (domain.DoctorRequest, error) {
	err := m.enter("GetDoctorRequest")
	defer m.mu.Unlock()
	if err != nil {
		return domain.DoctorRequest{}, err
	}
	r, ok := m.requests[id]
	if !ok {
		return domain.DoctorRequest{}, notFound("request")
	}
	return r, nil
}

func (m *memStore) ListDoctorRequests(_ context.Context, status domain.RequestStatus) ([]domain.DoctorRequest, error) {
	err := m.enter("ListDoctorRequests")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.DoctorRequest
	for _, r := range m.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ApproveDoctorRequest(_ context.Context, req domain.DoctorRequest, user domain.UserProfile, doctor domain.Doctor) error {
	err := m.enter("ApproveDoctorRequest")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := m.users[user.ID]; ok {
		return conditionFailed("user exists")
	}
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != domain.RequestPending {
		return conditionFailed("request not pending")
	}
	stored.Status = domain.RequestApproved
	stored.ReviewedBy = req.ReviewedBy
	stored.ReviewedAt = req.ReviewedAt
	stored.DoctorID = doctor.ID
	m.requests[req.ID] = stored
	m.users[user.ID] = user
	m.doctors[doctor.ID] = doctor
	return nil
}

func (m *memStore) RejectDoctorRequest(_ context.Context, id, reviewer string, at time.Time) error {
	err := m.enter("RejectDoctorRequest")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	r, ok := m.requests[id]
	if !ok || r.Status != domain.RequestPending {
		return conditionFailed("request not pending")
	}
	r.Status = domain.RequestRejected
	r.ReviewedBy = reviewer
	r.ReviewedAt = at
	m.requests[id] = r
	return nil
}

func slotKey(doctorID, date, slot string) string { return doctorID + "#" + date + "#" + slot }

func (m *memStore) CreateAppointment(_ context.Context, appt domain.Appointment, notice *domain.Notification) error {
	err := m.enter("CreateAppointment")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	key := slotKey(appt.DoctorID, appt.Date, appt.TimeSlot)
	if _, taken := m.slots[key]; taken {
		return conditionFailed("slot taken")
	}
	m.slots[key] = appt.ID
	m.appointments[appt.ID] = appt
	if notice != nil {
		m.notifications[notice.ID] = *notice
	}
	return nil
}

func (m *memStore) GetAppointment(_ context.Context, id string) (domain.Appointment, error) {
	err := m.enter("GetAppointment")
	defer m.mu.Unlock()
	if err != nil {
		return domain.Appointment{}, err
	}
	a, ok := m.appointments[id]
	if !ok {
		return domain.Appointment{}, notFound("appointment")
	}
	return a, nil
}

func (m *memStore) AppointmentsOn(_ context.Context, doctorID, date string) ([]domain.Appointment, error) {
	err := m.enter("AppointmentsOn")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []domain.Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot < out[j].TimeSlot })
	return out, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, appt domain.Appointment, status domain.AppointmentStatus, at time.Time, notice *domain.Notification) error {
	err := m.enter("UpdateAppointmentStatus")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	stored, ok := m.appointments[appt.ID]
	if !ok || stored.Status != appt.Status {
		return conditionFailed("status moved")
	}
	stored.Status = status
	stored.UpdatedAt = at
	m.appointments[appt.ID] = stored
	if status == domain.AppointmentCancelled {
		delete(m.slots, slotKey(appt.DoctorID, appt.Date, appt.TimeSlot))
	}
	if notice != nil {
		m.notifications[notice.ID] = *notice
	}
	return nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, userID, id string) error {
	err := m.enter("MarkNotificationRead")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return conditionFailed("notification owner")
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

func (m *memStore) GetThread(_ context.Context, id string) (domain.ChatThread, error) {
	err := m.enter("GetThread")
	defer m.mu.Unlock()
	if err != nil {
		return domain.ChatThread{}, err
	}
	t, ok := m.threads[id]
	if !ok {
		return domain.ChatThread{}, notFound("thread")
	}
	return copyThread(t), nil
}

func copyThread(t domain.ChatThread) domain.ChatThread {
	unread := map[string]int{}
	for k, v := range t.Unread {
		unread[k] = v
	}
	deleted := map[string]bool{}
	for k, v := range t.Deleted {
		deleted[k] = v
	}
	t.Unread, t.Deleted = unread, deleted
	return t
}

func (m *memStore) CreateThread(_ context.Context, t domain.ChatThread) error {
	err := m.enter("CreateThread")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := m.threads[t.ID]; ok {
		return conditionFailed("thread exists")
	}
	m.threads[t.ID] = copyThread(t)
	return nil
}

func (m *memStore) SetThreadStatus(_ context.Context, id string, from, to domain.ThreadStatus) error {
	err := m.enter("SetThreadStatus")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	t, ok := m.threads[id]
	if !ok || t.Status != from {
		return conditionFailed("thread status")
	}
	t.Status = to
	m.threads[id] = t
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, thread domain.ChatThread, msg domain.Message, preview string, notice *domain.Notification) error {
	err := m.enter("AppendMessage")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	t, ok := m.threads[thread.ID]
	if !ok || t.Status != domain.ThreadAccepted {
		return conditionFailed("thread not accepted")
	}
	if m.messages[thread.ID] == nil {
		m.messages[thread.ID] = map[string]domain.Message{}
	}
	m.messages[thread.ID][msg.ID] = msg
	t.LastMessage = preview
	t.LastMessageTime = msg.CreatedAt
	t.Unread[thread.Other(msg.SenderID)]++
	t.Deleted[t.ParticipantA] = false
	t.Deleted[t.ParticipantB] = false
	m.threads[thread.ID] = t
	if notice != nil {
		m.notifications[notice.ID] = *notice
	}
	return nil
}

func (m *memStore) UnreadMessageIDs(_ context.Context, threadID, readerID string) ([]string, error) {
	err := m.enter("UnreadMessageIDs")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, msg := range m.messages[threadID] {
		if !msg.Read && msg.SenderID != readerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) MarkThreadRead(_ context.Context, threadID, readerID string, ids []string) error {
	err := m.enter("MarkThreadRead")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	t, ok := m.threads[threadID]
	if !ok {
		return conditionFailed("thread")
	}
	t.Unread[readerID] = 0
	m.threads[threadID] = t
	for _, id := range ids {
		msg := m.messages[threadID][id]
		msg.Read = true
		m.messages[threadID][id] = msg
	}
	return nil
}

func (m *memStore) HideThread(_ context.Context, threadID, userID string) error {
	err := m.enter("HideThread")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	t, ok := m.threads[threadID]
	if !ok {
		return conditionFailed("thread")
	}
	t.Deleted[userID] = true
	m.threads[threadID] = t
	return nil
}

func (m *memStore) ListFeatured(_ context.Context) ([]domain.FeaturedEntry, error) {
	err := m.enter("ListFeatured")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeaturedEntry, 0, len(m.featured))
	for _, e := range m.featured {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (m *memStore) FeaturedHighWater(_ context.Context) (int, error) {
	err := m.enter("FeaturedHighWater")
	defer m.mu.Unlock()
	return m.highWater, err
}

func (m *memStore) AddFeatured(_ context.Context, entry domain.FeaturedEntry, expected int) error {
	err := m.enter("AddFeatured")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if m.highWater != expected {
		return conditionFailed("high water moved")
	}
	if _, ok := m.featured[entry.EntityID]; ok {
		return conditionFailed("already featured")
	}
	m.highWater = entry.Rank
	m.featured[entry.EntityID] = entry
	return nil
}

func (m *memStore) applyRanks(changes []domain.RankChange) error {
	for _, ch := range changes {
		if e, ok := m.featured[ch.EntityID]; !ok || e.Rank != ch.From {
			return conditionFailed("rank moved")
		}
	}
	for _, ch := range changes {
		e := m.featured[ch.EntityID]
		e.Rank = ch.To
		m.featured[ch.EntityID] = e
	}
	return nil
}

func (m *memStore) SwapFeaturedRanks(_ context.Context, a, b domain.FeaturedEntry) error {
	err := m.enter("SwapFeaturedRanks")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.swaps++
	return m.applyRanks([]domain.RankChange{
		{EntityID: a.EntityID, From: a.Rank, To: b.Rank},
		{EntityID: b.EntityID, From: b.Rank, To: a.Rank},
	})
}

func (m *memStore) RewriteFeaturedRanks(_ context.Context, changes []domain.RankChange) error {
	err := m.enter("RewriteFeaturedRanks")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.applyRanks(changes)
}

func (m *memStore) RemoveFeatured(_ context.Context, id string) error {
	err := m.enter("RemoveFeatured")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	delete(m.featured, id)
	return nil
}
