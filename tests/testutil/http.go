package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/auth"
	"github.com/stretchr/testify/require"
)

// Envelope is the JSON envelope every API response uses
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
		Details   []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

// ErrorCode returns the error code of a failed response, or ""
func (e Envelope) ErrorCode() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// APIClient sends authenticated requests to an in-process handler
type APIClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

// NewAPIClient creates a client for handler. Use WithToken or AsOperator to
// authenticate.
func NewAPIClient(t *testing.T, handler http.Handler) *APIClient {
	return &APIClient{t: t, handler: handler}
}

// WithToken returns a copy of the client sending token as a bearer token
func (c *APIClient) WithToken(token string) *APIClient {
	cp := *c
	cp.token = token
	return &cp
}

// AsOperator issues a token for operator in tenant with permissions
func (c *APIClient) AsOperator(tokens *auth.OperatorTokenService, tenantID, operatorID uuid.UUID, permissions ...string) *APIClient {
	c.t.Helper()
	token, _, err := tokens.Issue(auth.IssueInput{
		TenantID:    tenantID,
		OperatorID:  operatorID,
		Operator:    "ops." + operatorID.String()[:8],
		Permissions: permissions,
	})
	require.NoError(c.t, err, "Failed to issue operator token")
	return c.WithToken(token)
}

// Do sends the request and returns the recorder. body is encoded as JSON
// when it is not nil.
func (c *APIClient) Do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err, "Failed to marshal request body")
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

// DoJSON sends the request, requires status and decodes the envelope. When
// out is not nil the data member is decoded into it.
func (c *APIClient) DoJSON(method, path string, body any, status int, out any) Envelope {
	c.t.Helper()

	w := c.Do(method, path, body)
	require.Equal(c.t, status, w.Code, "unexpected status for %s %s: %s", method, path, w.Body.String())

	var env Envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response envelope")
	if out != nil {
		require.NotEmpty(c.t, env.Data, "response has no data")
		require.NoError(c.t, json.Unmarshal(env.Data, out), "Failed to decode response data")
	}
	return env
}
