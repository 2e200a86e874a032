package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vminventory/vminventory/internal/shared"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		shared.Validation("x", "bad"):                   http.StatusBadRequest,
		fmt.Errorf("%w: no", shared.ErrUnauthorized):    http.StatusUnauthorized,
		shared.ErrInvalidCredentials:                    http.StatusUnauthorized,
		fmt.Errorf("%w: no", shared.ErrForbidden):       http.StatusForbidden,
		shared.NotFound("machine", 1):                   http.StatusNotFound,
		fmt.Errorf("%w: duplicate", shared.ErrConflict): http.StatusConflict,
		shared.Persistence("save", errors.New("io")):    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestRespondErrorEnvelopes(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, nil, shared.NotFound("machine", 5))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"machine not found"}`, rr.Body.String())

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	rr = httptest.NewRecorder()
	RespondError(rr, logger, shared.Persistence("create machine", errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"failed to create machine"}`, rr.Body.String())
	assert.Contains(t, logs.String(), "connection refused")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		MemorySize int `json:"memorySize"`
	}

	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"memorySize": 4096}`))
	require.NoError(t, DecodeJSON(req, &p))
	assert.Equal(t, 4096, p.MemorySize)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSON(req, &p)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.EqualError(t, err, "request body is required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"memorySize": "big"}`))
	err = DecodeJSON(req, &p)
	assert.EqualError(t, err, "memorySize has an invalid type")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"memorySize":`))
	err = DecodeJSON(req, &p)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
