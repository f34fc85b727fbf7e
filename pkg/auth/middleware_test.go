package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(svc *Service) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	RegisterRoutes(e, svc)
	return e
}

func TestMe(t *testing.T) {
	t.Parallel()

	svc := NewService("secret")
	e := newTestEcho(svc)
	token, err := svc.GenerateToken("user-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		guest  bool
		userID string
	}{
		{"guest", "", http.StatusOK, true, ""},
		{"bearer", "Bearer " + token, http.StatusOK, false, "user-1"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, false, ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var resp MeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.guest, resp.Guest)
			assert.Equal(t, tt.userID, resp.UserID)
			assert.Equal(t, !tt.guest, resp.Verified)
		})
	}
}
