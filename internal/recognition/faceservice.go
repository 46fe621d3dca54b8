package recognition

import (
	"context"
	"fmt"

	"rollcall/internal/faceclient"
)

// FaceService identifies faces through the external face microservice.
type FaceService struct {
	client    *faceclient.Client
	threshold float64
}

// NewFaceService wraps client. Matches below threshold are discarded by the service.
func NewFaceService(client *faceclient.Client, threshold float64) *FaceService {
	return &FaceService{client: client, threshold: threshold}
}

// Enroll sends the reference image to the service gallery.
func (f *FaceService) Enroll(ctx context.Context, rollNo string, image []byte) error {
	res, err := f.client.Enroll(ctx, rollNo, "", image)
	if err != nil {
		return fmt.Errorf("face service enroll: %w", err)
	}
	if !res.Success || res.FacesDetected == 0 {
		return ErrNoFaceDetected
	}
	return nil
}

// Identify returns the best gallery match, if any.
func (f *FaceService) Identify(ctx context.Context, image []byte) (Match, error) {
	res, err := f.client.Search(ctx, image, 1, f.threshold)
	if err != nil {
		return Match{}, fmt.Errorf("face service search: %w", err)
	}
	if res.FacesDetected == 0 {
		return Match{}, ErrNoFaceDetected
	}
	if len(res.Matches) == 0 {
		return Match{}, nil
	}
	best := res.Matches[0]
	return Match{RollNo: best.UserID, Found: true, Score: best.Similarity}, nil
}
