// Package recognition maps a captured image to an enrolled roll number.
//
// Two providers exist. WeightedStub is demonstration logic that does not look at
// the image at all; FaceService delegates to an external face matching service.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/faceclient"
)

// ErrNoFaceDetected is returned when the image contains no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Match is the result of an identification attempt.
type Match struct {
	RollNo string
	Found  bool
	Score  float64
}

// Provider enrolls reference images and identifies captured ones.
type Provider interface {
	Enroll(ctx context.Context, rollNo string, image []byte) error
	Identify(ctx context.Context, image []byte) (Match, error)
}

// Gallery lists the roll numbers that currently have an enrollment.
type Gallery interface {
	Enrolled(ctx context.Context) ([]string, error)
}

// Options selects and tunes a provider.
type Options struct {
	Kind           string // "stub" or "faceservice"
	Window         time.Duration
	FaceServiceURL string
	FaceSkip       bool
	Threshold      float64
}

// New builds the provider named by opts.Kind.
func New(opts Options, gallery Gallery) (Provider, error) {
	switch opts.Kind {
	case "", "stub":
		return NewWeightedStub(gallery, opts.Window), nil
	case "faceservice":
		return NewFaceService(faceclient.New(opts.FaceServiceURL, opts.FaceSkip), opts.Threshold), nil
	default:
		return nil, fmt.Errorf("unknown recognition provider %q", opts.Kind)
	}
}
