package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"markupcheck-backend/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"

	// AnonymousUserID owns analyses submitted without an X-Guest-Id header.
	AnonymousUserID = "anonymous"
)

var guestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Identity derives the caller's user ID from the X-Guest-Id header. Requests
// without one run as AnonymousUserID; malformed ids are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			c.Set(userIDKey, AnonymousUserID)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}
		if !guestIDPattern.MatchString(guestID) {
			respond.Error(c, http.StatusBadRequest, "invalid_identity", "X-Guest-Id must be 1-128 letters, digits, '-' or '_'", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsAnonymous reports whether the request carries no caller identity.
func IsAnonymous(c *gin.Context) bool {
	id := UserIDFromContext(c)
	return id == "" || id == AnonymousUserID
}
