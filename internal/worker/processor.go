// Package worker handles attendance events published by the API.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"rollcall/internal/attendance"
	"rollcall/internal/cloudinary"
	"rollcall/internal/queue"
)

// Uploader mirrors enrollment images to remote storage.
type Uploader interface {
	UploadBytes(ctx context.Context, data []byte, publicID string) (*cloudinary.UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// PhotoStore records the mirrored URL on a student.
type PhotoStore interface {
	UpdateStudentPhoto(ctx context.Context, rollNo, photoURL string) error
}

// ImageSource opens the local reference image of a student.
type ImageSource interface {
	Open(rollNo string) (*os.File, error)
}

// Processor applies side effects for queued events. A nil uploader skips mirroring.
type Processor struct {
	uploader Uploader
	photos   PhotoStore
	images   ImageSource
}

func NewProcessor(uploader Uploader, photos PhotoStore, images ImageSource) *Processor {
	return &Processor{uploader: uploader, photos: photos, images: images}
}

// Run handles messages until ctx ends or the queue channel closes.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if err := p.Handle(ctx, msg); err != nil {
			log.Printf("event %s failed: %v", msg.Type, err)
		}
	}
	log.Println("worker stopped")
	return nil
}

// Handle processes one message. Unknown event types are skipped.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	evt, err := attendance.DecodeEvent(msg)
	if err != nil {
		return err
	}

	switch evt.Type {
	case attendance.EventEnrollmentSaved:
		return p.mirror(ctx, evt.RollNo)
	case attendance.EventStudentDeleted:
		if p.uploader == nil {
			return nil
		}
		if err := p.uploader.Destroy(ctx, evt.RollNo); err != nil {
			return fmt.Errorf("destroy mirrored photo of %s: %w", evt.RollNo, err)
		}
		log.Printf("removed mirrored photo of %s", evt.RollNo)
		return nil
	case attendance.EventAttendanceMarked:
		log.Printf("attendance marked: %s on %s", evt.RollNo, evt.Date)
		return nil
	default:
		log.Printf("skipping unknown event type %q", evt.Type)
		return nil
	}
}

func (p *Processor) mirror(ctx context.Context, rollNo string) error {
	if p.uploader == nil {
		log.Printf("cloudinary not configured, not mirroring photo of %s", rollNo)
		return nil
	}
	f, err := p.images.Open(rollNo)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// student deleted before the event was processed
			log.Printf("enrollment image of %s is gone, skipping mirror", rollNo)
			return nil
		}
		return fmt.Errorf("open enrollment image: %w", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read enrollment image: %w", err)
	}

	res, err := p.uploader.UploadBytes(ctx, data, rollNo)
	if err != nil {
		return err
	}
	if err := p.photos.UpdateStudentPhoto(ctx, rollNo, res.SecureURL); err != nil {
		if errors.Is(err, attendance.ErrStudentNotFound) {
			log.Printf("student %s deleted during mirror, leaving asset %s", rollNo, res.PublicID)
			return nil
		}
		return fmt.Errorf("store photo url: %w", err)
	}
	log.Printf("mirrored photo of %s to %s", rollNo, res.SecureURL)
	return nil
}
