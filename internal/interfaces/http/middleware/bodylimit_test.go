package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func settleEngine(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(limit))
	r.POST("/settle", func(c *gin.Context) {
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "stream cut at %d", tooLarge.Limit)
				return
			}
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/snapshots", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestBodyLimit(t *testing.T) {
	settle := `{"sale_line_id":"0191b3c4-0000-7000-8000-000000000001","quantity":"2"}`
	oversized := `{"note":"` + strings.Repeat("x", 512) + `"}`

	tests := []struct {
		name          string
		limit         int64
		method        string
		path          string
		body          string
		contentLength int64 // -1 streams the body without a length
		want          int
		wantBody      string
	}{
		{"settle body within limit", 1024, http.MethodPost, "/settle", settle, int64(len(settle)), http.StatusOK, "ok"},
		{"declared length over limit", 128, http.MethodPost, "/settle", oversized, int64(len(oversized)), http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"},
		{"streamed body cut by reader", 128, http.MethodPost, "/settle", oversized, -1, http.StatusRequestEntityTooLarge, "stream cut at 128"},
		{"bodiless GET passes", 8, http.MethodGet, "/snapshots", "", 0, http.StatusOK, "ok"},
		{"zero limit disables the check", 0, http.MethodPost, "/settle", oversized, int64(len(oversized)), http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			settleEngine(tt.limit).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
