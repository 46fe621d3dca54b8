package enrollment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(filepath.Join(root, "images"), filepath.Join(root, "fingerprints"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveWritesImageAndFingerprint(t *testing.T) {
	s := newTestStore(t)

	art, err := s.Save("A100", bytes.NewReader([]byte("jpeg bytes")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if art.Size != int64(len("jpeg bytes")) {
		t.Errorf("Size = %d, want %d", art.Size, len("jpeg bytes"))
	}
	if len(art.Fingerprint) != 16 {
		t.Errorf("Fingerprint %q should be 16 hex chars", art.Fingerprint)
	}

	img, err := os.ReadFile(s.ImagePath("A100"))
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(img) != "jpeg bytes" {
		t.Errorf("image = %q, want %q", img, "jpeg bytes")
	}
	fp, err := s.Fingerprint("A100")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fp != art.Fingerprint {
		t.Errorf("stored fingerprint %q != returned %q", fp, art.Fingerprint)
	}
}

func TestSaveFingerprintIsStable(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Save("A100", strings.NewReader("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save("B200", strings.NewReader("same"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.Save("C300", strings.NewReader("different"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Errorf("same content produced %q and %q", a.Fingerprint, b.Fingerprint)
	}
	if a.Fingerprint == c.Fingerprint {
		t.Errorf("different content produced the same fingerprint %q", a.Fingerprint)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Save("A100", strings.NewReader("first"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Save("A100", strings.NewReader("second"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Fingerprint == second.Fingerprint {
		t.Error("re-enrollment kept the old fingerprint")
	}
	img, _ := os.ReadFile(s.ImagePath("A100"))
	if string(img) != "second" {
		t.Errorf("image = %q, want second", img)
	}
	ids, _ := s.Enrolled(context.Background())
	if !reflect.DeepEqual(ids, []string{"A100"}) {
		t.Errorf("Enrolled = %v, want [A100]", ids)
	}
}

func TestSaveEmptyImage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("A100", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("Save(empty) error = %v, want ErrEmptyImage", err)
	}
	if s.Has("A100") {
		t.Error("empty image produced an artifact")
	}
	assertNoTempFiles(t, s.ImagesDir)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveCleansUpOnReadFailure(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("A100", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	if err == nil {
		t.Fatal("expected error from failing reader")
	}
	if _, statErr := os.Stat(s.ImagePath("A100")); !os.IsNotExist(statErr) {
		t.Errorf("partial image left behind: %v", statErr)
	}
	assertNoTempFiles(t, s.ImagesDir)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("A100", strings.NewReader("img")); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove("A100"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Has("A100") {
		t.Error("fingerprint still present after Remove")
	}
	if _, err := os.Stat(s.ImagePath("A100")); !os.IsNotExist(err) {
		t.Error("image still present after Remove")
	}
	if err := s.Remove("A100"); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestEnrolledSortedAndFiltered(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"C3", "A1", "B2"} {
		if _, err := s.Save(id, strings.NewReader("img-"+id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.FingerprintsDir, "notes.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := s.Enrolled(context.Background())
	if err != nil {
		t.Fatalf("Enrolled: %v", err)
	}
	if want := []string{"A1", "B2", "C3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Enrolled = %v, want %v", ids, want)
	}
}

func TestEnrolledMissingDir(t *testing.T) {
	s := &Store{ImagesDir: t.TempDir(), FingerprintsDir: filepath.Join(t.TempDir(), "absent")}
	ids, err := s.Enrolled(context.Background())
	if err != nil {
		t.Fatalf("Enrolled: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Enrolled = %v, want empty", ids)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			t.Errorf("temp file %s left in %s", e.Name(), dir)
		}
	}
}
