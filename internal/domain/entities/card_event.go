package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// CardEventType represents the type of helper card event
type CardEventType string

const (
	CardEventTypeGenerated   CardEventType = "card_generated"
	CardEventTypeDeactivated CardEventType = "card_deactivated"
)

// CardEvent is a real-time notification pushed to report editor sessions
// when a helper card is produced or withdrawn.
type CardEvent struct {
	ID        string        `json:"id"`
	CardID    string        `json:"card_id"`
	EventType CardEventType `json:"event_type"`
	Token     string        `json:"token"`
	Section   ReportSection `json:"section"`
	Modality  string        `json:"modality,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewCardEvent creates a new card event
func NewCardEvent(cardID string, eventType CardEventType, token string, section ReportSection, modality string) *CardEvent {
	return &CardEvent{
		ID:        generateEventID(),
		CardID:    cardID,
		EventType: eventType,
		Token:     token,
		Section:   section,
		Modality:  modality,
		Timestamp: time.Now(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000000000")
	}
	return hex.EncodeToString(bytes)[:length]
}
