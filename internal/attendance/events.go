package attendance

import (
	"encoding/json"
	"fmt"
	"time"

	"rollcall/internal/queue"
)

// Event types published after a committed change.
const (
	EventEnrollmentSaved  = "enrollment.saved"
	EventAttendanceMarked = "attendance.marked"
	EventStudentDeleted   = "student.deleted"
)

// Event is the JSON body carried by queue messages.
type Event struct {
	Type   string    `json:"type"`
	RollNo string    `json:"roll_no"`
	Date   string    `json:"date,omitempty"`
	At     time.Time `json:"at"`
}

// Message encodes the event for the queue.
func (e Event) Message() (queue.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: e.Type, Body: body}, nil
}

// DecodeEvent parses a queue message produced by Event.Message.
func DecodeEvent(msg queue.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	if e.Type == "" {
		e.Type = msg.Type
	}
	return e, nil
}
