// Package enrollment keeps the per-student reference image and its fingerprint on disk.
package enrollment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	imageExt       = ".jpg"
	fingerprintExt = ".txt"
)

// ErrEmptyImage is returned when the supplied image has no bytes.
var ErrEmptyImage = errors.New("empty image")

// Artifact describes a stored enrollment.
type Artifact struct {
	RollNo      string `json:"roll_no"`
	ImagePath   string `json:"image_path"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

// Store writes one image and one fingerprint file per roll number.
type Store struct {
	ImagesDir       string
	FingerprintsDir string
}

// New creates both directories if needed.
func New(imagesDir, fingerprintsDir string) (*Store, error) {
	for _, dir := range []string{imagesDir, fingerprintsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{ImagesDir: imagesDir, FingerprintsDir: fingerprintsDir}, nil
}

// ImagePath returns where the reference image for rollNo lives.
func (s *Store) ImagePath(rollNo string) string {
	return filepath.Join(s.ImagesDir, rollNo+imageExt)
}

// FingerprintPath returns where the fingerprint for rollNo lives.
func (s *Store) FingerprintPath(rollNo string) string {
	return filepath.Join(s.FingerprintsDir, rollNo+fingerprintExt)
}

// Save stores image as the reference for rollNo, replacing any earlier artifact.
// The image is hashed while it is written; both files are swapped in by rename.
func (s *Store) Save(rollNo string, image io.Reader) (Artifact, error) {
	h := xxhash.New()
	size, err := writeAtomic(s.ImagePath(rollNo), io.TeeReader(image, h))
	if err != nil {
		return Artifact{}, fmt.Errorf("save image for %s: %w", rollNo, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if _, err := writeAtomic(s.FingerprintPath(rollNo), strings.NewReader(sum)); err != nil {
		return Artifact{}, fmt.Errorf("save fingerprint for %s: %w", rollNo, err)
	}

	return Artifact{
		RollNo:      rollNo,
		ImagePath:   s.ImagePath(rollNo),
		Fingerprint: sum,
		Size:        size,
	}, nil
}

// writeAtomic copies r into a temp file next to path and renames it into place.
// The temp file never outlives the call.
func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if n == 0 {
		tmp.Close()
		return 0, ErrEmptyImage
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	return n, nil
}

// Remove deletes the artifact for rollNo. Missing files are ignored.
func (s *Store) Remove(rollNo string) error {
	var errs []error
	for _, p := range []string{s.ImagePath(rollNo), s.FingerprintPath(rollNo)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has reports whether a fingerprint exists for rollNo.
func (s *Store) Has(rollNo string) bool {
	_, err := os.Stat(s.FingerprintPath(rollNo))
	return err == nil
}

// Fingerprint reads the stored fingerprint for rollNo.
func (s *Store) Fingerprint(rollNo string) (string, error) {
	b, err := os.ReadFile(s.FingerprintPath(rollNo))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Open returns the stored reference image for rollNo.
func (s *Store) Open(rollNo string) (*os.File, error) {
	return os.Open(s.ImagePath(rollNo))
}

// Enrolled lists roll numbers that have a fingerprint file, sorted.
func (s *Store) Enrolled(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.FingerprintsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fingerprintExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fingerprintExt))
	}
	sort.Strings(ids)
	return ids, nil
}
