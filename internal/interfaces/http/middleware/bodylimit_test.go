package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	r := newEngine(BodyLimit(10))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "read failed")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	t.Run("small body passes", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("short")))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("declared length over the limit", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too long")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, decodeError(t, w).Code)
	})

	t.Run("undeclared length is capped while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too long"))
		req.ContentLength = -1
		w := serve(r, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("zero disables", func(t *testing.T) {
		r := newEngine(BodyLimit(0))
		r.POST("/x", okHandler)
		w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too long")))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
