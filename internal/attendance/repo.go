package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/store"
)

// Repository persists students and the attendance ledger.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q(query string) string { return r.db.Rebind(query) }

// withTx runs fn in a transaction, rolling back on any error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const studentColumns = `id, roll_no, name, class, photo_url, enrolled_at, created_at`

func scanStudent(row rowScanner) (Student, error) {
	var st Student
	var enrolledAt sql.NullTime
	if err := row.Scan(&st.ID, &st.RollNo, &st.Name, &st.Class, &st.PhotoURL, &enrolledAt, &st.CreatedAt); err != nil {
		return Student{}, err
	}
	if enrolledAt.Valid {
		t := enrolledAt.Time
		st.EnrolledAt = &t
	}
	return st, nil
}

// CreateStudent inserts st, failing with ErrDuplicateRollNo if the roll number is taken.
func (r *Repository) CreateStudent(ctx context.Context, st *Student) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.q(`SELECT 1 FROM students WHERE roll_no = ?`), st.RollNo).Scan(&exists)
		switch {
		case err == nil:
			return ErrDuplicateRollNo
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check roll number: %w", err)
		}

		_, err = tx.ExecContext(ctx, r.q(`
			INSERT INTO students (id, roll_no, name, class, photo_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), st.ID, st.RollNo, st.Name, st.Class, st.PhotoURL, st.CreatedAt)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return ErrDuplicateRollNo
			}
			return fmt.Errorf("insert student: %w", err)
		}
		return nil
	})
}

// GetStudentByRollNo returns the student or nil when none exists.
func (r *Repository) GetStudentByRollNo(ctx context.Context, rollNo string) (*Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.q(`SELECT `+studentColumns+` FROM students WHERE roll_no = ?`), rollNo)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// ListStudents returns every student ordered by name.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY name, roll_no`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// SetEnrolled stamps the enrollment time of a student.
func (r *Repository) SetEnrolled(ctx context.Context, rollNo string, at time.Time) error {
	res, err := r.db.Client.ExecContext(ctx, r.q(`UPDATE students SET enrolled_at = ? WHERE roll_no = ?`), at.UTC(), rollNo)
	if err != nil {
		return fmt.Errorf("set enrolled: %w", err)
	}
	return requireRow(res)
}

// ClearEnrolled marks a student as having no reference image.
func (r *Repository) ClearEnrolled(ctx context.Context, rollNo string) error {
	if _, err := r.db.Client.ExecContext(ctx, r.q(`UPDATE students SET enrolled_at = NULL WHERE roll_no = ?`), rollNo); err != nil {
		return fmt.Errorf("clear enrolled: %w", err)
	}
	return nil
}

// UpdateStudentPhoto stores the mirrored photo URL of a student.
func (r *Repository) UpdateStudentPhoto(ctx context.Context, rollNo, photoURL string) error {
	res, err := r.db.Client.ExecContext(ctx, r.q(`UPDATE students SET photo_url = ? WHERE roll_no = ?`), photoURL, rollNo)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// RecordPresence inserts a Present record for (studentID, date) unless one exists.
// created is false when the day was already recorded; rec is the stored record either way.
func (r *Repository) RecordPresence(ctx context.Context, studentID, date string, at time.Time) (rec Record, created bool, err error) {
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.findRecord(ctx, tx, studentID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			rec = *existing
			return nil
		}

		rec = Record{
			ID:        uuid.NewString(),
			StudentID: studentID,
			Date:      date,
			Status:    StatusPresent,
			CreatedAt: at.UTC(),
		}
		res, err := tx.ExecContext(ctx, r.q(`
			INSERT INTO attendance (id, student_id, date, status, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (student_id, date) DO NOTHING
		`), rec.ID, rec.StudentID, rec.Date, rec.Status, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// lost a race with a concurrent insert for the same day
			existing, err := r.findRecord(ctx, tx, studentID, date)
			if err != nil {
				return err
			}
			if existing != nil {
				rec = *existing
			}
			return nil
		}
		created = true
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, created, nil
}

func (r *Repository) findRecord(ctx context.Context, tx *sql.Tx, studentID, date string) (*Record, error) {
	var rec Record
	err := tx.QueryRowContext(ctx, r.q(`
		SELECT id, student_id, date, status, created_at
		FROM attendance WHERE student_id = ? AND date = ?
	`), studentID, date).Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// History returns a student's records, newest first.
func (r *Repository) History(ctx context.Context, rollNo string) ([]Record, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.q(`
		SELECT a.id, a.student_id, a.date, a.status, a.created_at
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE s.roll_no = ?
		ORDER BY a.date DESC
	`), rollNo)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountRecords returns how many attendance rows exist for (rollNo, date).
// An empty date counts every day.
func (r *Repository) CountRecords(ctx context.Context, rollNo, date string) (int, error) {
	query := `SELECT COUNT(*) FROM attendance a JOIN students s ON s.id = a.student_id WHERE s.roll_no = ?`
	args := []any{rollNo}
	if date != "" {
		query += ` AND a.date = ?`
		args = append(args, date)
	}
	var n int
	if err := r.db.Client.QueryRowContext(ctx, r.q(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return n, nil
}

// DeleteStudent removes a student's attendance rows and then the student, in one transaction.
func (r *Repository) DeleteStudent(ctx context.Context, rollNo string) (Student, error) {
	var st Student
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		st, err = scanStudent(tx.QueryRowContext(ctx, r.q(`SELECT `+studentColumns+` FROM students WHERE roll_no = ?`), rollNo))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStudentNotFound
			}
			return fmt.Errorf("get student: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM attendance WHERE student_id = ?`), st.ID); err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM students WHERE id = ?`), st.ID); err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

// ReportRows lists every student with their status on date, Absent when unrecorded.
func (r *Repository) ReportRows(ctx context.Context, date string) ([]ReportRow, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.q(`
		SELECT s.name, s.roll_no, s.class, COALESCE(a.status, 'Absent')
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.id AND a.date = ?
		ORDER BY s.name, s.roll_no
	`), date)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		if err := rows.Scan(&row.Name, &row.RollNo, &row.Class, &row.Status); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Dates returns the distinct days that have at least one record, newest first.
func (r *Repository) Dates(ctx context.Context) ([]string, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT DISTINCT date FROM attendance ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
