// Package chat defines the shared chat room's message model.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLen is the longest message body accepted, in runes.
const MaxBodyLen = 500

// DefaultHistory is how many recent messages a client receives on connect.
const DefaultHistory = 50

var (
	// ErrEmptyMessage is returned for a body that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong is returned for a body longer than MaxBodyLen.
	ErrMessageTooLong = errors.New("message too long")
)

// Message is one line of chat. ID and SentAt are assigned by the store.
type Message struct {
	ID     int64     `json:"id"`
	Sender string    `json:"sender"`
	Body   string    `json:"message"`
	SentAt time.Time `json:"timestamp"`
}

// New validates body and returns an unsaved message from sender.
//
// Precondition: sender must be non-empty.
// Postcondition: Body is trimmed, non-empty and at most MaxBodyLen runes.
func New(sender, body string, at time.Time) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(body); n > MaxBodyLen {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLong, n, MaxBodyLen)
	}
	return Message{Sender: sender, Body: body, SentAt: at.UTC()}, nil
}
