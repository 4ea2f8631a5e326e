package devrealm

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// TokenAuth checks the handshake's token header and stores the subject
// under "user" for the socket handler.
func (s *Server) TokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.authenticate(c.GetHeader("token"))
		if err != nil {
			s.metrics.Handshakes.WithLabelValues("unauthorized").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}
