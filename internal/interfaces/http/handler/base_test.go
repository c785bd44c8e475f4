package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var (
	testTenantID   = uuid.MustParse("0b6f7c2e-3f7a-4a10-9b9c-1d2e3f405162")
	testOperatorID = uuid.MustParse("5a1c9d7e-2b3f-4c5d-8e9f-a0b1c2d3e4f5")
	testNow        = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	testToday      = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return testNow }

// newTestEngine routes requests through a fake authentication step that
// sets the tenant and operator the way OperatorAuth does
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, testTenantID)
		c.Set(middleware.OperatorIDKey, testOperatorID)
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid terms", shared.NewDomainError(lending.CodeInvalidTerms, "tenure out of range"), http.StatusBadRequest, lending.CodeInvalidTerms},
		{"duplicate payment", shared.NewDomainError(lending.CodeDuplicatePayment, "reference reused"), http.StatusUnprocessableEntity, lending.CodeDuplicatePayment},
		{"loan locked", lending.ErrLoanLocked, http.StatusConflict, lending.CodeLoanLocked},
		{"illegal transition", shared.NewDomainError(lending.CodeIllegalTransition, "no"), http.StatusUnprocessableEntity, lending.CodeIllegalTransition},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBaseHandler(fixedNow)
			r := newTestEngine()
			r.GET("/x", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doJSON(r, http.MethodGet, "/x", nil)
			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.RequestID)
			assert.NotContains(t, w.Body.String(), "db exploded")
		})
	}
}

func TestBaseHandler_TenantRequired(t *testing.T) {
	h := newBaseHandler(fixedNow)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if _, ok := h.tenant(c); ok {
			c.Status(http.StatusOK)
		}
	})
	w := doJSON(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBaseHandler_Today(t *testing.T) {
	h := newBaseHandler(fixedNow)
	assert.Equal(t, testToday, h.today())
}
