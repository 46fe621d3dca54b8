package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
)

// Recognize identifies the captured face and marks the student present today.
func (h *Handler) Recognize(c *gin.Context) {
	img, ok := h.imageField(c)
	if !ok {
		return
	}

	out, err := h.svc.MarkAttendance(c.Request.Context(), img, h.today())
	if err != nil {
		if errors.Is(err, attendance.ErrUnknownSubject) {
			fail(c, http.StatusNotFound, "Student not found in database")
			return
		}
		log.Printf("recognize failed: %v", err)
		fail(c, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	switch out.Kind {
	case attendance.Marked:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"duplicate": false,
			"roll_no":   out.Student.RollNo,
			"name":      out.Student.Name,
			"message":   fmt.Sprintf("Marked present: %s (%s)", out.Student.Name, out.Student.RollNo),
		})
	case attendance.Duplicate:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"duplicate": true,
			"roll_no":   out.Student.RollNo,
			"name":      out.Student.Name,
			"message":   fmt.Sprintf("Attendance already marked for %s (%s)", out.Student.Name, out.Student.RollNo),
		})
	case attendance.NoFace:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No face detected. Please try again."})
	default:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No recognized face found"})
	}
}
