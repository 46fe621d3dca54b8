package attendance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"rollcall/internal/enrollment"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/recognition"
)

// ArtifactStore keeps the reference image and fingerprint of each student.
type ArtifactStore interface {
	Save(rollNo string, image io.Reader) (enrollment.Artifact, error)
	Remove(rollNo string) error
}

// Publisher receives events after committed changes.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service coordinates recognition, enrollment artifacts and the ledger.
type Service struct {
	repo       *Repository
	artifacts  ArtifactStore
	recognizer recognition.Provider
	events     Publisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a service backed by a repository.
func NewService(repo *Repository, artifacts ArtifactStore, recognizer recognition.Provider, opts ...Option) *Service {
	s := &Service{repo: repo, artifacts: artifacts, recognizer: recognizer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and stores a new student.
func (s *Service) Register(ctx context.Context, name, rollNo, class string) (Student, error) {
	name, err := ValidateName(name)
	if err != nil {
		return Student{}, err
	}
	rollNo, err = ValidateRollNo(rollNo)
	if err != nil {
		return Student{}, err
	}

	st := Student{
		Name:      name,
		RollNo:    rollNo,
		Class:     strings.TrimSpace(class),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateStudent(ctx, &st); err != nil {
		return Student{}, err
	}
	log.Printf("registered student %s (%s)", st.RollNo, st.Name)
	return st, nil
}

// Enroll stores image as the reference of a registered student, replacing any earlier one.
func (s *Service) Enroll(ctx context.Context, rollNo string, image []byte) (enrollment.Artifact, error) {
	art, err := s.enroll(ctx, strings.TrimSpace(rollNo), image)
	if err != nil {
		s.metrics.Enrollment("failed")
		return enrollment.Artifact{}, err
	}
	s.metrics.Enrollment("saved")
	return art, nil
}

func (s *Service) enroll(ctx context.Context, rollNo string, image []byte) (enrollment.Artifact, error) {
	if rollNo == "" {
		return enrollment.Artifact{}, ErrInvalidRollNo
	}
	if len(image) == 0 {
		return enrollment.Artifact{}, ErrNoImage
	}
	st, err := s.repo.GetStudentByRollNo(ctx, rollNo)
	if err != nil {
		return enrollment.Artifact{}, err
	}
	if st == nil {
		return enrollment.Artifact{}, ErrStudentNotFound
	}

	if err := s.recognizer.Enroll(ctx, rollNo, image); err != nil {
		return enrollment.Artifact{}, err
	}
	art, err := s.artifacts.Save(rollNo, bytes.NewReader(image))
	if err != nil {
		return enrollment.Artifact{}, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}

	now := s.now()
	if err := s.repo.SetEnrolled(ctx, rollNo, now); err != nil {
		return enrollment.Artifact{}, err
	}
	log.Printf("face image and fingerprint saved for %s", rollNo)
	s.publish(ctx, Event{Type: EventEnrollmentSaved, RollNo: rollNo, At: now.UTC()})
	return art, nil
}

// MarkAttendance identifies the person in image and records them present on today.
// A second call for the same student and day reports Duplicate without writing.
func (s *Service) MarkAttendance(ctx context.Context, image []byte, today string) (Outcome, error) {
	if len(image) == 0 {
		return Outcome{}, ErrNoImage
	}
	today, err := ParseDate(today)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	match, err := s.recognizer.Identify(ctx, image)
	s.metrics.ObserveRecognition(start)
	if err != nil {
		if errors.Is(err, recognition.ErrNoFaceDetected) {
			s.metrics.Outcome(string(NoFace))
			return Outcome{Kind: NoFace, Date: today}, nil
		}
		s.metrics.Outcome("error")
		return Outcome{}, fmt.Errorf("identify: %w", err)
	}
	if !match.Found {
		s.metrics.Outcome(string(NoMatch))
		return Outcome{Kind: NoMatch, Date: today}, nil
	}

	st, err := s.repo.GetStudentByRollNo(ctx, match.RollNo)
	if err != nil {
		s.metrics.Outcome("error")
		return Outcome{}, err
	}
	if st == nil {
		s.metrics.Outcome("unknown_subject")
		log.Printf("recognized %s but no such student is registered", match.RollNo)
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownSubject, match.RollNo)
	}

	now := s.now()
	_, created, err := s.repo.RecordPresence(ctx, st.ID, today, now)
	if err != nil {
		s.metrics.Outcome("error")
		return Outcome{}, err
	}
	if !created {
		s.metrics.Outcome(string(Duplicate))
		return Outcome{Kind: Duplicate, Student: st, Date: today}, nil
	}

	s.metrics.Outcome(string(Marked))
	log.Printf("marked present: %s (%s) on %s", st.Name, st.RollNo, today)
	s.publish(ctx, Event{Type: EventAttendanceMarked, RollNo: st.RollNo, Date: today, At: now.UTC()})
	return Outcome{Kind: Marked, Student: st, Date: today}, nil
}

// DeleteStudent removes the enrollment artifact, then the student and their records.
func (s *Service) DeleteStudent(ctx context.Context, rollNo string) (Student, error) {
	rollNo = strings.TrimSpace(rollNo)
	existing, err := s.repo.GetStudentByRollNo(ctx, rollNo)
	if err != nil {
		return Student{}, err
	}
	if existing == nil {
		return Student{}, ErrStudentNotFound
	}

	if err := s.artifacts.Remove(rollNo); err != nil {
		return Student{}, fmt.Errorf("remove enrollment artifact: %w", err)
	}
	st, err := s.repo.DeleteStudent(ctx, rollNo)
	if err != nil {
		// the files are gone, so the row must not claim an enrollment
		if cerr := s.repo.ClearEnrolled(ctx, rollNo); cerr != nil {
			log.Printf("delete %s: %v", rollNo, cerr)
		}
		return Student{}, err
	}
	log.Printf("deleted student %s with attendance history and enrollment files", rollNo)
	s.publish(ctx, Event{Type: EventStudentDeleted, RollNo: rollNo, At: s.now().UTC()})
	return st, nil
}

// ListStudents returns every student ordered by name.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.repo.ListStudents(ctx)
}

// GetStudent returns a student with their attendance history.
func (s *Service) GetStudent(ctx context.Context, rollNo string) (Student, []Record, error) {
	st, err := s.repo.GetStudentByRollNo(ctx, strings.TrimSpace(rollNo))
	if err != nil {
		return Student{}, nil, err
	}
	if st == nil {
		return Student{}, nil, ErrStudentNotFound
	}
	history, err := s.repo.History(ctx, st.RollNo)
	if err != nil {
		return Student{}, nil, err
	}
	return *st, history, nil
}

// History returns the records of a student, newest first.
func (s *Service) History(ctx context.Context, rollNo string) ([]Record, error) {
	_, history, err := s.GetStudent(ctx, rollNo)
	return history, err
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.events == nil {
		return
	}
	msg, err := evt.Message()
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("queue publish %s for %s failed: %v", evt.Type, evt.RollNo, err)
	}
}
