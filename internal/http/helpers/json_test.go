package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Provider string `json:"provider"`
}

func newReq(body, ct string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	if ct != "" {
		r.Header.Set("Content-Type", ct)
	}
	return r
}

func TestReadJSON(t *testing.T) {
	var p payload
	err := ReadJSON(httptest.NewRecorder(), newReq(`{"provider":"google","extra":1}`, "application/json; charset=utf-8"), &p)
	require.NoError(t, err)
	assert.Equal(t, "google", p.Provider)
}

func TestReadJSON_Errors(t *testing.T) {
	var p payload
	assert.Equal(t, httperrors.ErrUnsupportedMediaType, ReadJSON(httptest.NewRecorder(), newReq(`{}`, "text/plain"), &p))

	err := ReadJSON(httptest.NewRecorder(), newReq(`{bad`, "application/json"), &p)
	assert.Equal(t, "INVALID_JSON", httperrors.FromError(err).Code)

	err = ReadJSON(httptest.NewRecorder(), newReq(``, "application/json"), &p)
	assert.Equal(t, "MISSING_FIELDS", httperrors.FromError(err).Code)

	big := `{"provider":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err = ReadJSON(httptest.NewRecorder(), newReq(big, "application/json"), &p)
	assert.Equal(t, "BODY_TOO_LARGE", httperrors.FromError(err).Code)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":"1"}`, rec.Body.String())
}
