package domain

import "time"

// ThreadStatus is the lifecycle state of a chat thread.
type ThreadStatus string

const (
	ThreadPending  ThreadStatus = "pending"
	ThreadAccepted ThreadStatus = "accepted"
	ThreadRejected ThreadStatus = "rejected"
)

// ChatThread is a conversation owned jointly by its two participants.
type ChatThread struct {
	ID              string          `json:"id"`
	ParticipantA    string          `json:"participantA"`
	ParticipantB    string          `json:"participantB"`
	Status          ThreadStatus    `json:"status"`
	LastMessage     string          `json:"lastMessage"`
	LastMessageTime time.Time       `json:"lastMessageTime"`
	Unread          map[string]int  `json:"unread"`
	Deleted         map[string]bool `json:"deleted"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two thread owners.
func (t ChatThread) HasParticipant(userID string) bool {
	return userID != "" && (t.ParticipantA == userID || t.ParticipantB == userID)
}

// Other returns the participant that is not userID.
func (t ChatThread) Other(userID string) string {
	if t.ParticipantA == userID {
		return t.ParticipantB
	}
	return t.ParticipantA
}

// Message is a single chat entry stored under its thread. Only Read ever changes
// after creation.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Text       string    `json:"text"`
	ImageRef   string    `json:"imageRef"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}
