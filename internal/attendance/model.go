package attendance

import "time"

// Attendance statuses. Absent is never stored; it is implied by a missing record.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// DateLayout is the calendar-day format used by the ledger and the HTTP surface.
const DateLayout = "2006-01-02"

// Student represents a registered student.
type Student struct {
	ID         string     `json:"-"`
	RollNo     string     `json:"roll_no"`
	Name       string     `json:"name"`
	Class      string     `json:"class"`
	PhotoURL   string     `json:"photo_url,omitempty"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Enrolled reports whether a reference image has been stored for the student.
func (s Student) Enrolled() bool { return s.EnrolledAt != nil }

// Record is one attendance entry for a student on a day.
type Record struct {
	ID        string    `json:"-"`
	StudentID string    `json:"-"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRow is one line of a daily report.
type ReportRow struct {
	Name   string `json:"name"`
	RollNo string `json:"roll_no"`
	Class  string `json:"class"`
	Status string `json:"status"`
}

// OutcomeKind classifies a recognition attempt.
type OutcomeKind string

const (
	Marked    OutcomeKind = "marked"
	Duplicate OutcomeKind = "duplicate"
	NoMatch   OutcomeKind = "no_match"
	NoFace    OutcomeKind = "no_face"
)

// Outcome is the result of MarkAttendance. Student is set for Marked and Duplicate.
type Outcome struct {
	Kind    OutcomeKind
	Student *Student
	Date    string
}

// Today formats now as a calendar day in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}
