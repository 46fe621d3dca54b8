package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/report"
)

var (
	errInvalidImage  = errors.New("invalid image data")
	errImageTooLarge = errors.New("image too large")
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Healthy(ctx context.Context) bool
}

// Config wires a Handler to its collaborators.
type Config struct {
	Service       *attendance.Service
	Reports       *report.Generator
	Tickets       *auth.Tickets
	Location      *time.Location
	MaxImageBytes int
	WebDir        string
	Checks        map[string]Checker
}

type Handler struct {
	svc      *attendance.Service
	reports  *report.Generator
	tickets  *auth.Tickets
	loc      *time.Location
	maxImage int
	webDir   string
	checks   map[string]Checker
	now      func() time.Time
}

func New(cfg Config) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = 8 << 20
	}
	return &Handler{
		svc:      cfg.Service,
		reports:  cfg.Reports,
		tickets:  cfg.Tickets,
		loc:      loc,
		maxImage: maxImage,
		webDir:   cfg.WebDir,
		checks:   cfg.Checks,
		now:      time.Now,
	}
}

// Routes mounts every endpoint on r. guard runs before the state-changing routes.
func (h *Handler) Routes(r *gin.Engine, guard ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	mut := r.Group("/", guard...)
	mut.POST("/register", h.Register)
	mut.POST("/save_face", h.limitBody, auth.CaptureTicket(h.tickets), h.SaveFace)
	mut.POST("/recognize", h.limitBody, h.Recognize)
	mut.DELETE("/students/:roll_no", h.DeleteStudent)
	mut.GET("/delete_student/:roll_no", h.DeleteStudent)

	r.GET("/students", h.ListStudents)
	r.GET("/students/:roll_no", h.GetStudent)
	r.GET("/reports", h.Reports)
	r.GET("/download_report", h.DownloadReport)

	if h.webDir != "" {
		r.StaticFile("/", filepath.Join(h.webDir, "index.html"))
		r.GET("/capture_face", auth.CaptureTicket(h.tickets), h.CapturePage)
		r.Static("/static", filepath.Join(h.webDir, "static"))
	}
}

// Healthz reports each configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, chk := range h.checks {
		ok := chk != nil && chk.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// CapturePage serves the camera page to a browser holding a capture ticket.
func (h *Handler) CapturePage(c *gin.Context) {
	if _, ok := auth.RollNoFromContext(c); !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.File(filepath.Join(h.webDir, "capture.html"))
}

func (h *Handler) today() string {
	return attendance.Today(h.now(), h.loc)
}

// limitBody caps request bodies; base64 inflates an image by a third.
func (h *Handler) limitBody(c *gin.Context) {
	limit := int64(h.maxImage) * 2
	if c.Request.ContentLength > limit {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Image too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	// Parse here so a chunked body over the cap surfaces as 413 and not as a missing field.
	var tooLarge *http.MaxBytesError
	if err := c.Request.ParseMultipartForm(limit); errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Image too large"})
		return
	}
	c.Next()
}

// decodeImage strips an optional data URL prefix and decodes the base64 payload.
func (h *Handler) decodeImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if _, data, ok := strings.Cut(payload, ","); ok {
		payload = data
	}
	if payload == "" {
		return nil, attendance.ErrNoImage
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errInvalidImage
	}
	if len(img) == 0 {
		return nil, attendance.ErrNoImage
	}
	if len(img) > h.maxImage {
		return nil, errImageTooLarge
	}
	return img, nil
}

// imageField reads image_data from the form and maps body errors to responses.
func (h *Handler) imageField(c *gin.Context) ([]byte, bool) {
	raw, ok := c.GetPostForm("image_data")
	if !ok {
		fail(c, http.StatusBadRequest, "No image data received")
		return nil, false
	}
	img, err := h.decodeImage(raw)
	switch {
	case err == nil:
		return img, true
	case errors.Is(err, attendance.ErrNoImage):
		fail(c, http.StatusBadRequest, "No image data received")
	case errors.Is(err, errImageTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, "Image too large")
	default:
		fail(c, http.StatusBadRequest, "Invalid image data")
	}
	return nil, false
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
