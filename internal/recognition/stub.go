package recognition

import (
	"context"
	"log"
	"math/rand/v2"
	"sort"
	"time"
)

// WeightedStub is a placeholder that does not perform face recognition.
//
// Identify ignores the image. It sorts the enrolled roll numbers, weights the
// i-th of n by n-i so earlier numbers are favoured, and makes one weighted draw
// from a generator seeded by the current time window. Calls inside the same
// window agree; calls in different windows may not.
type WeightedStub struct {
	gallery Gallery
	window  time.Duration
	now     func() time.Time
}

// NewWeightedStub returns a stub drawing from gallery. window defaults to 500ms.
func NewWeightedStub(gallery Gallery, window time.Duration) *WeightedStub {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &WeightedStub{gallery: gallery, window: window, now: time.Now}
}

// WithClock replaces the time source.
func (s *WeightedStub) WithClock(now func() time.Time) *WeightedStub {
	s.now = now
	return s
}

// Enroll accepts any non-empty image. The gallery itself is maintained by the
// enrollment store, which this stub reads on every Identify.
func (s *WeightedStub) Enroll(ctx context.Context, rollNo string, image []byte) error {
	if len(image) == 0 {
		return ErrNoFaceDetected
	}
	return nil
}

// Identify picks an enrolled roll number by weighted draw.
func (s *WeightedStub) Identify(ctx context.Context, image []byte) (Match, error) {
	ids, err := s.gallery.Enrolled(ctx)
	if err != nil {
		return Match{}, err
	}
	if len(ids) == 0 {
		log.Printf("recognition stub: gallery is empty")
		return Match{}, nil
	}
	ids = append([]string(nil), ids...)
	sort.Strings(ids)

	seed := uint64(s.now().UnixNano() / int64(s.window))
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	picked := ids[weightedIndex(rng, len(ids))]
	log.Printf("recognition stub: selected %s out of %d enrolled", picked, len(ids))
	return Match{RollNo: picked, Found: true}, nil
}

// weightedIndex draws i in [0,n) with probability (n-i) / (n(n+1)/2).
func weightedIndex(rng *rand.Rand, n int) int {
	total := n * (n + 1) / 2
	r := rng.IntN(total)
	for i := 0; i < n; i++ {
		w := n - i
		if r < w {
			return i
		}
		r -= w
	}
	return n - 1
}
