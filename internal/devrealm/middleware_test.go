package devrealm

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelyclient/internal/auth"
)

func setupAuthRouter(secret string) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Secret: secret}, nil)
	r := gin.New()
	r.GET("/who", s.TokenAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(userKey))
	})
	return s, r
}

func TestTokenAuth(t *testing.T) {
	valid, err := auth.SignDevToken("k", "andi", time.Hour, time.Now())
	require.NoError(t, err)
	expired, err := auth.SignDevToken("k", "andi", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	foreign, err := auth.SignDevToken("other", "andi", time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name     string
		secret   string
		token    string
		wantCode int
		wantBody string
	}{
		{"open realm accepts anything", "", "incorrect", http.StatusOK, "anonymous"},
		{"open realm accepts no token", "", "", http.StatusOK, "anonymous"},
		{"valid token", "k", valid, http.StatusOK, "andi"},
		{"missing token", "k", "", http.StatusUnauthorized, ""},
		{"placeholder token", "k", "incorrect", http.StatusUnauthorized, ""},
		{"expired token", "k", expired, http.StatusUnauthorized, ""},
		{"wrong secret", "k", foreign, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r := setupAuthRouter(tt.secret)
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.token != "" {
				req.Header.Set("token", tt.token)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.Handshakes.WithLabelValues("unauthorized")))
			}
		})
	}
}
