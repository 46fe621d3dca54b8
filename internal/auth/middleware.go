package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TicketHeader carries a capture ticket on API requests.
const TicketHeader = "X-Capture-Ticket"

const rollNoKey = "capture_roll_no"

// CaptureTicket reads an optional capture ticket from the header, the
// capture_token form field or the ticket query parameter. Requests without
// one pass through; a ticket that fails validation is rejected with 401.
func CaptureTicket(t *Tickets) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ticketFrom(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := t.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid capture ticket"})
			return
		}
		c.Set(rollNoKey, claims.RollNo)
		c.Next()
	}
}

func ticketFrom(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(TicketHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.PostForm("capture_token")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("ticket"))
}

// RollNoFromContext returns the roll number carried by a validated ticket.
func RollNoFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(rollNoKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
