package attendance

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"rollcall/internal/enrollment"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/recognition"
)

const day = "2024-03-01"

func TestRegisterValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, "Al1ce", "A100", "10A"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Register bad name error = %v, want ErrInvalidName", err)
	}
	if _, err := env.svc.Register(ctx, "Alice", "A-100", "10A"); !errors.Is(err, ErrInvalidRollNo) {
		t.Fatalf("Register bad roll error = %v, want ErrInvalidRollNo", err)
	}
	students, _ := env.svc.ListStudents(ctx)
	if len(students) != 0 {
		t.Fatalf("invalid registrations stored %d students", len(students))
	}

	st, err := env.svc.Register(ctx, "  Alice ", "A100", " 10A ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if st.Name != "Alice" || st.Class != "10A" || st.Enrolled() {
		t.Errorf("Register = %+v", st)
	}
	if _, err := env.svc.Register(ctx, "Alicia", "A100", "10B"); !errors.Is(err, ErrDuplicateRollNo) {
		t.Errorf("Register duplicate error = %v, want ErrDuplicateRollNo", err)
	}
}

func TestEnrollStoresArtifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", "10A"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	art, err := env.svc.Enroll(ctx, "A100", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if art.RollNo != "A100" || art.Fingerprint == "" {
		t.Errorf("artifact = %+v", art)
	}
	if !env.artifacts.Has("A100") {
		t.Error("artifact files missing after Enroll")
	}
	st, _, err := env.svc.GetStudent(ctx, "A100")
	if err != nil || !st.Enrolled() {
		t.Errorf("student after Enroll = %+v, %v", st, err)
	}
	if got := env.events.types(); len(got) != 1 || got[0] != EventEnrollmentSaved {
		t.Errorf("events = %v, want [%s]", got, EventEnrollmentSaved)
	}
}

func TestEnrollErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := env.svc.Enroll(ctx, "A100", nil); !errors.Is(err, ErrNoImage) {
		t.Errorf("empty image error = %v, want ErrNoImage", err)
	}
	if _, err := env.svc.Enroll(ctx, "Z999", []byte("img")); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("unknown student error = %v, want ErrStudentNotFound", err)
	}

	env.provider.enrollErr = recognition.ErrNoFaceDetected
	if _, err := env.svc.Enroll(ctx, "A100", []byte("img")); !errors.Is(err, recognition.ErrNoFaceDetected) {
		t.Errorf("no face error = %v, want ErrNoFaceDetected", err)
	}
	if env.artifacts.Has("A100") {
		t.Error("artifact written although no face was detected")
	}
}

func TestMarkAttendanceOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", "10A"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	env.provider.match = recognition.Match{RollNo: "A100", Found: true}

	first, err := env.svc.MarkAttendance(ctx, []byte("frame"), day)
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if first.Kind != Marked || first.Student == nil || first.Student.Name != "Alice" {
		t.Fatalf("first outcome = %+v, want Marked Alice", first)
	}

	second, err := env.svc.MarkAttendance(ctx, []byte("frame"), day)
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if second.Kind != Duplicate {
		t.Errorf("second outcome = %s, want %s", second.Kind, Duplicate)
	}

	if n, _ := env.repo.CountRecords(ctx, "A100", day); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
	want := []string{EventAttendanceMarked}
	if got := env.events.types(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMarkAttendanceOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		match    recognition.Match
		err      error
		wantKind OutcomeKind
		wantErr  error
	}{
		{name: "no face", err: recognition.ErrNoFaceDetected, wantKind: NoFace},
		{name: "no match", match: recognition.Match{}, wantKind: NoMatch},
		{name: "unknown subject", match: recognition.Match{RollNo: "GHOST", Found: true}, wantErr: ErrUnknownSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.match = tt.match
			env.provider.err = tt.err

			out, err := env.svc.MarkAttendance(context.Background(), []byte("frame"), day)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MarkAttendance: %v", err)
			}
			if out.Kind != tt.wantKind || out.Student != nil {
				t.Errorf("outcome = %+v, want %s", out, tt.wantKind)
			}
			if len(env.events.types()) != 0 {
				t.Errorf("events published for %s", tt.wantKind)
			}
		})
	}
}

func TestMarkAttendanceRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.MarkAttendance(context.Background(), nil, day); !errors.Is(err, ErrNoImage) {
		t.Errorf("empty image error = %v, want ErrNoImage", err)
	}
	if _, err := env.svc.MarkAttendance(context.Background(), []byte("x"), "03/01/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("bad date error = %v, want ErrInvalidDate", err)
	}
}

func TestMarkAttendanceProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("face service unavailable")
	_, err := env.svc.MarkAttendance(context.Background(), []byte("frame"), day)
	if err == nil || !strings.Contains(err.Error(), "face service unavailable") {
		t.Errorf("error = %v", err)
	}
}

func TestDeleteStudentRemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", "10A"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.svc.Enroll(ctx, "A100", []byte("jpeg")); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	env.provider.match = recognition.Match{RollNo: "A100", Found: true}
	if _, err := env.svc.MarkAttendance(ctx, []byte("frame"), day); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if _, err := env.svc.DeleteStudent(ctx, "A100"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if env.artifacts.Has("A100") {
		t.Error("artifact files survived delete")
	}
	if n, _ := env.repo.CountRecords(ctx, "A100", ""); n != 0 {
		t.Errorf("records after delete = %d", n)
	}
	if _, _, err := env.svc.GetStudent(ctx, "A100"); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("GetStudent after delete error = %v", err)
	}
	got := env.events.types()
	if len(got) == 0 || got[len(got)-1] != EventStudentDeleted {
		t.Errorf("events = %v, want trailing %s", got, EventStudentDeleted)
	}

	if _, err := env.svc.DeleteStudent(ctx, "A100"); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("second delete error = %v, want ErrStudentNotFound", err)
	}
}

type failingArtifacts struct{}

func (failingArtifacts) Save(string, io.Reader) (enrollment.Artifact, error) {
	return enrollment.Artifact{}, errors.New("read-only")
}

func (failingArtifacts) Remove(string) error { return errors.New("permission denied") }

func TestDeleteStudentKeepsRowsWhenArtifactRemovalFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	svc := NewService(env.repo, failingArtifacts{}, env.provider)

	if _, err := svc.DeleteStudent(ctx, "A100"); err == nil {
		t.Fatal("DeleteStudent succeeded with failing artifact store")
	}
	if st, _ := env.repo.GetStudentByRollNo(ctx, "A100"); st == nil {
		t.Error("student removed although artifacts could not be")
	}
}

func TestDeleteStudentClearsEnrollmentWhenRowDeleteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, "Alice", "A100", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.svc.Enroll(ctx, "A100", []byte("jpeg")); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := env.repo.db.Client.ExecContext(ctx, `CREATE TRIGGER keep_students BEFORE DELETE ON students
		BEGIN SELECT RAISE(ABORT, 'students are locked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := env.svc.DeleteStudent(ctx, "A100"); err == nil {
		t.Fatal("DeleteStudent succeeded although the row delete failed")
	}
	st, err := env.repo.GetStudentByRollNo(ctx, "A100")
	if err != nil || st == nil {
		t.Fatalf("student after failed delete = %v, %v", st, err)
	}
	if st.Enrolled() {
		t.Error("student still enrolled after its files were removed")
	}
	if env.artifacts.Has("A100") {
		t.Error("artifact files survived delete")
	}
}

func TestServiceMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewService(env.repo, env.artifacts, env.provider, WithMetrics(m),
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }))

	if _, err := svc.Register(ctx, "Alice", "A100", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	env.provider.match = recognition.Match{RollNo: "A100", Found: true}
	for i := 0; i < 3; i++ {
		if _, err := svc.MarkAttendance(ctx, []byte("frame"), day); err != nil {
			t.Fatalf("MarkAttendance: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("marked")); got != 1 {
		t.Errorf("marked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("duplicate")); got != 2 {
		t.Errorf("duplicate = %v, want 2", got)
	}
}

func TestEventRoundTrip(t *testing.T) {
	evt := Event{Type: EventAttendanceMarked, RollNo: "A100", Date: day, At: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	msg, err := evt.Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if msg.Type != EventAttendanceMarked {
		t.Errorf("msg.Type = %q", msg.Type)
	}
	got, err := DecodeEvent(msg)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.RollNo != "A100" || got.Date != day || !got.At.Equal(evt.At) {
		t.Errorf("DecodeEvent = %+v", got)
	}

	if _, err := DecodeEvent(queue.Message{Type: "x", Body: []byte("not json")}); err == nil {
		t.Error("DecodeEvent accepted garbage")
	}
}

func TestSingleStudentDayWithWeightedStub(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stub := recognition.NewWeightedStub(env.artifacts, time.Second).
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) })
	svc := NewService(env.repo, env.artifacts, stub)

	if _, err := svc.Register(ctx, "Alice", "A100", "10A"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Enroll(ctx, "A100", []byte("reference jpeg")); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	first, err := svc.MarkAttendance(ctx, []byte("frame"), "2024-01-01")
	if err != nil || first.Kind != Marked || first.Student.RollNo != "A100" {
		t.Fatalf("first MarkAttendance = %+v, %v", first, err)
	}
	second, err := svc.MarkAttendance(ctx, []byte("frame"), "2024-01-01")
	if err != nil || second.Kind != Duplicate {
		t.Fatalf("second MarkAttendance = %+v, %v", second, err)
	}
	if n, _ := env.repo.CountRecords(ctx, "A100", "2024-01-01"); n != 1 {
		t.Errorf("records on 2024-01-01 = %d, want 1", n)
	}

	for date, want := range map[string]string{"2024-01-01": StatusPresent, "2024-01-02": StatusAbsent} {
		rows, err := env.repo.ReportRows(ctx, date)
		if err != nil {
			t.Fatalf("ReportRows(%s): %v", date, err)
		}
		if len(rows) != 1 || rows[0].Name != "Alice" || rows[0].Status != want {
			t.Errorf("report %s = %+v, want Alice %s", date, rows, want)
		}
	}
}
