package usecase

import (
	"context"
	"errors"
	"strings"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/i18n"
	"clinic-booking/internal/integrations/mediastore"
	"clinic-booking/internal/repository"
)

const maxMessageLen = 2000

type ChatStore interface {
	GetThread(ctx context.Context, id string) (domain.ChatThread, error)
	CreateThread(ctx context.Context, t domain.ChatThread) error
	SetThreadStatus(ctx context.Context, id string, from, to domain.ThreadStatus) error
	AppendMessage(ctx context.Context, thread domain.ChatThread, msg domain.Message, preview string, notice *domain.Notification) error
	UnreadMessageIDs(ctx context.Context, threadID, readerID string) ([]string, error)
	MarkThreadRead(ctx context.Context, threadID, readerID string, messageIDs []string) error
	HideThread(ctx context.Context, threadID, userID string) error
}

// MediaStore presigns chat image transfers.
type MediaStore interface {
	UploadURL(ctx context.Context, threadID, contentType string) (mediastore.Upload, error)
	DownloadURL(ctx context.Context, threadID, ref string) (string, error)
}

type ChatService struct {
	store   ChatStore
	users   UserReader
	media   MediaStore
	catalog *i18n.Catalog
}

type SendMessageInput struct {
	ThreadID string
	Text     string
	ImageRef string
}

// NewChatService builds the service. media may be nil, in which case image
// uploads are unavailable.
func NewChatService(store ChatStore, users UserReader, media MediaStore, catalog *i18n.Catalog) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("usecase: chat store must not be nil")
	}
	if users == nil {
		return nil, errors.New("usecase: user reader must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	return &ChatService{store: store, users: users, media: media, catalog: catalog}, nil
}

// StartThread opens a pending thread between the caller and otherID. One of the
// two must be a doctor. Starting a thread that already exists returns it.
func (s *ChatService) StartThread(ctx context.Context, caller Caller, otherID string) (domain.ChatThread, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return domain.ChatThread{}, newError(ErrorInvalidInput, "missing_participant", nil)
	}
	if otherID == caller.UserID {
		return domain.ChatThread{}, newError(ErrorInvalidInput, "self_thread", nil)
	}
	me, e := profileOf(ctx, s.users, caller)
	if e != nil {
		return domain.ChatThread{}, e
	}
	other, err := s.users.GetUser(ctx, otherID)
	if err != nil {
		return domain.ChatThread{}, storeError("participant_not_found", err)
	}
	if me.Role != domain.RoleDoctor && other.Role != domain.RoleDoctor {
		return domain.ChatThread{}, newError(ErrorForbidden, "doctor_required", nil)
	}

	thread := domain.ChatThread{
		ID:           threadIDFor(me.ID, other.ID),
		ParticipantA: me.ID,
		ParticipantB: other.ID,
		Status:       domain.ThreadPending,
		Unread:       map[string]int{me.ID: 0, other.ID: 0},
		Deleted:      map[string]bool{me.ID: false, other.ID: false},
		CreatedAt:    now(),
	}
	err = s.store.CreateThread(ctx, thread)
	if errors.Is(err, repository.ErrConditionFailed) {
		existing, err := s.store.GetThread(ctx, thread.ID)
		if err != nil {
			return domain.ChatThread{}, storeError("thread_not_found", err)
		}
		return existing, nil
	}
	if err != nil {
		return domain.ChatThread{}, storeError("thread_exists", err)
	}
	return thread, nil
}

// RespondThread lets the doctor in a pending thread accept or reject it.
func (s *ChatService) RespondThread(ctx context.Context, caller Caller, threadID string, accept bool) (domain.ChatThread, error) {
	thread, e := s.participantThread(ctx, caller, threadID)
	if e != nil {
		return domain.ChatThread{}, e
	}
	if _, e := profileOf(ctx, s.users, caller, domain.RoleDoctor); e != nil {
		return domain.ChatThread{}, e
	}
	to := domain.ThreadRejected
	if accept {
		to = domain.ThreadAccepted
	}
	if err := s.store.SetThreadStatus(ctx, thread.ID, domain.ThreadPending, to); err != nil {
		return domain.ChatThread{}, storeError("thread_not_pending", err)
	}
	thread.Status = to
	return thread, nil
}

// SendMessage appends a text or image message to an accepted thread.
func (s *ChatService) SendMessage(ctx context.Context, caller Caller, in SendMessageInput) (domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	ref := strings.TrimSpace(in.ImageRef)
	if text == "" && ref == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len([]rune(text)) > maxMessageLen {
		return domain.Message{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	thread, e := s.participantThread(ctx, caller, in.ThreadID)
	if e != nil {
		return domain.Message{}, e
	}
	if ref != "" && !strings.HasPrefix(ref, domain.CollectionChats+"/"+thread.ID+"/") {
		return domain.Message{}, newError(ErrorInvalidInput, "foreign_image_ref", nil)
	}
	if thread.Status != domain.ThreadAccepted {
		return domain.Message{}, newError(ErrorConflict, "thread_not_accepted", nil)
	}
	sender, e := profileOf(ctx, s.users, caller)
	if e != nil {
		return domain.Message{}, e
	}

	at := now()
	msg := domain.Message{
		ID:         newMessageID(at),
		ThreadID:   thread.ID,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		Text:       text,
		ImageRef:   ref,
		CreatedAt:  at,
	}
	preview := text
	if preview == "" {
		preview = s.catalog.T("chat.image")
	}
	notice := &domain.Notification{
		ID:        newUUID(),
		UserID:    thread.Other(sender.ID),
		Type:      domain.NotificationChat,
		Title:     s.catalog.T("chat.new.title"),
		Body:      preview,
		RefID:     thread.ID,
		CreatedAt: at,
	}
	if err := s.store.AppendMessage(ctx, thread, msg, preview, notice); err != nil {
		return domain.Message{}, storeError("thread_not_accepted", err)
	}
	return msg, nil
}

// MarkRead clears the caller's unread counter and flags the other side's
// messages read. It returns how many messages were flagged.
func (s *ChatService) MarkRead(ctx context.Context, caller Caller, threadID string) (int, error) {
	thread, e := s.participantThread(ctx, caller, threadID)
	if e != nil {
		return 0, e
	}
	ids, err := s.store.UnreadMessageIDs(ctx, thread.ID, caller.UserID)
	if err != nil {
		return 0, storeError("thread_not_found", err)
	}
	if err := s.store.MarkThreadRead(ctx, thread.ID, caller.UserID, ids); err != nil {
		return 0, storeError("thread_not_found", err)
	}
	return len(ids), nil
}

// HideThread removes the thread from the caller's list until a new message arrives.
func (s *ChatService) HideThread(ctx context.Context, caller Caller, threadID string) error {
	thread, e := s.participantThread(ctx, caller, threadID)
	if e != nil {
		return e
	}
	if err := s.store.HideThread(ctx, thread.ID, caller.UserID); err != nil {
		return storeError("thread_not_found", err)
	}
	return nil
}

// ImageUploadURL presigns an image upload for an accepted thread.
func (s *ChatService) ImageUploadURL(ctx context.Context, caller Caller, threadID, contentType string) (mediastore.Upload, error) {
	if s.media == nil {
		return mediastore.Upload{}, newError(ErrorUpstream, "media_unavailable", nil)
	}
	thread, e := s.participantThread(ctx, caller, threadID)
	if e != nil {
		return mediastore.Upload{}, e
	}
	if thread.Status != domain.ThreadAccepted {
		return mediastore.Upload{}, newError(ErrorConflict, "thread_not_accepted", nil)
	}
	up, err := s.media.UploadURL(ctx, thread.ID, contentType)
	if errors.Is(err, mediastore.ErrUnsupportedType) {
		return mediastore.Upload{}, newError(ErrorInvalidInput, "unsupported_content_type", err)
	}
	if err != nil {
		return mediastore.Upload{}, newError(ErrorUpstream, "presign_error", err)
	}
	return up, nil
}

// ImageURL presigns a download of an image sent in the thread.
func (s *ChatService) ImageURL(ctx context.Context, caller Caller, threadID, ref string) (string, error) {
	if s.media == nil {
		return "", newError(ErrorUpstream, "media_unavailable", nil)
	}
	thread, e := s.participantThread(ctx, caller, threadID)
	if e != nil {
		return "", e
	}
	url, err := s.media.DownloadURL(ctx, thread.ID, ref)
	if errors.Is(err, mediastore.ErrForeignRef) {
		return "", newError(ErrorInvalidInput, "foreign_image_ref", err)
	}
	if err != nil {
		return "", newError(ErrorUpstream, "presign_error", err)
	}
	return url, nil
}

// participantThread loads a thread the caller belongs to. Threads of other people
// are reported as missing.
func (s *ChatService) participantThread(ctx context.Context, caller Caller, threadID string) (domain.ChatThread, *Error) {
	if caller.Anonymous() {
		return domain.ChatThread{}, newError(ErrorUnauthenticated, "unauthenticated", nil)
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return domain.ChatThread{}, newError(ErrorInvalidInput, "missing_thread_id", nil)
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return domain.ChatThread{}, storeError("thread_not_found", err)
	}
	if !thread.HasParticipant(caller.UserID) {
		return domain.ChatThread{}, newError(ErrorNotFound, "thread_not_found", nil)
	}
	return thread, nil
}
