package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func authTestRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", BearerAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestBearerAuthPlainToken(t *testing.T) {
	r := authTestRouter(AuthConfig{TokenAPI: "sekret"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer sekret", http.StatusOK},
		{"case-insensitive scheme", "bearer sekret", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sekret", http.StatusUnauthorized},
		{"no scheme", "sekret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestBearerAuthHashedTokenWins(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	// The plain token is deliberately different; the hash must decide.
	r := authTestRouter(AuthConfig{TokenAPI: "other", TokenAPIHash: string(hash)})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("hashed token should authenticate, status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer other")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("plain token must be ignored when a hash is set, status = %d", w.Code)
	}
}
