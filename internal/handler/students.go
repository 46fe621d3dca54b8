package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/recognition"
)

type registerRequest struct {
	Name   string `form:"name"`
	RollNo string `form:"roll_no"`
	Class  string `form:"class_name"`
}

// Register creates a student and hands out a capture ticket for the face step.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.svc.Register(c.Request.Context(), req.Name, req.RollNo, req.Class)
	switch {
	case err == nil:
	case errors.Is(err, attendance.ErrInvalidName):
		fail(c, http.StatusBadRequest, "Name should contain only letters and spaces")
		return
	case errors.Is(err, attendance.ErrInvalidRollNo):
		fail(c, http.StatusBadRequest, "Roll number should be alphanumeric")
		return
	case errors.Is(err, attendance.ErrDuplicateRollNo):
		fail(c, http.StatusConflict, fmt.Sprintf("Roll number %s already exists!", strings.TrimSpace(req.RollNo)))
		return
	default:
		log.Printf("register %s failed: %v", req.RollNo, err)
		fail(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	token, _, err := h.tickets.Issue(st.RollNo)
	if err != nil {
		log.Printf("issue capture ticket for %s failed: %v", st.RollNo, err)
		fail(c, http.StatusInternalServerError, "could not issue capture ticket")
		return
	}
	next := "/capture_face?ticket=" + url.QueryEscape(token)

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"message":       fmt.Sprintf("Successfully registered %s (Roll: %s)", st.Name, st.RollNo),
		"roll_no":       st.RollNo,
		"capture_token": token,
		"next":          next,
	})
}

// SaveFace stores the reference image for the student named by the capture
// ticket, or by the roll_no form field when no ticket is sent.
func (h *Handler) SaveFace(c *gin.Context) {
	rollNo := strings.TrimSpace(c.PostForm("roll_no"))
	if ticketRoll, ok := auth.RollNoFromContext(c); ok {
		if rollNo != "" && rollNo != ticketRoll {
			fail(c, http.StatusForbidden, "Capture ticket does not match roll number")
			return
		}
		rollNo = ticketRoll
	}
	if rollNo == "" {
		fail(c, http.StatusBadRequest, "Roll number is required")
		return
	}

	img, ok := h.imageField(c)
	if !ok {
		return
	}

	_, err := h.svc.Enroll(c.Request.Context(), rollNo, img)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Face encoding saved for " + rollNo})
	case errors.Is(err, recognition.ErrNoFaceDetected):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No face detected. Please try again."})
	case errors.Is(err, attendance.ErrStudentNotFound):
		fail(c, http.StatusNotFound, "Student not found")
	case errors.Is(err, attendance.ErrNoImage):
		fail(c, http.StatusBadRequest, "No image data received")
	default:
		log.Printf("save face for %s failed: %v", rollNo, err)
		fail(c, http.StatusInternalServerError, "Error: "+err.Error())
	}
}

// ListStudents returns every student in name order.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if students == nil {
		students = []attendance.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetStudent returns one student and their attendance history.
func (h *Handler) GetStudent(c *gin.Context) {
	rollNo := c.Param("roll_no")
	st, history, err := h.svc.GetStudent(c.Request.Context(), rollNo)
	if err != nil {
		if errors.Is(err, attendance.ErrStudentNotFound) {
			fail(c, http.StatusNotFound, fmt.Sprintf("Student with roll number %s not found", rollNo))
			return
		}
		fail(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if history == nil {
		history = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "enrolled": st.Enrolled(), "history": history})
}

// DeleteStudent removes a student, their attendance and enrollment files.
func (h *Handler) DeleteStudent(c *gin.Context) {
	rollNo := c.Param("roll_no")
	_, err := h.svc.DeleteStudent(c.Request.Context(), rollNo)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": fmt.Sprintf("Student with roll number %s has been deleted", rollNo),
		})
	case errors.Is(err, attendance.ErrStudentNotFound):
		fail(c, http.StatusNotFound, fmt.Sprintf("Student with roll number %s not found", rollNo))
	default:
		log.Printf("delete %s failed: %v", rollNo, err)
		fail(c, http.StatusInternalServerError, "Error deleting student: "+err.Error())
	}
}
