package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/logger"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteErrorMapsTypedErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details bool
	}{
		{"insufficient points", pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient points").WithDetails(map[string]any{"required": 50}), http.StatusBadRequest, "insufficient points", true},
		{"redundant transition", pkgerrors.New(pkgerrors.CodeStateConflict, "swap request is already accepted"), http.StatusBadRequest, "swap request is already accepted", false},
		{"forbidden", pkgerrors.New(pkgerrors.CodeForbidden, "only the item owner"), http.StatusForbidden, "only the item owner", false},
		{"internal hides message", pkgerrors.New(pkgerrors.CodeInternal, "secret detail"), http.StatusInternalServerError, "internal server error", false},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal server error", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &logs})
			w := httptest.NewRecorder()
			WriteError(context.Background(), logg, w, tc.err)

			require.Equal(t, tc.status, w.Code)
			var body ErrorEnvelope
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.message, body.Error.Message)
			assert.Equal(t, tc.details, body.Error.Details != nil)
			assert.NotEmpty(t, logs.String())
		})
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-Id", "req-42")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "swap request not found"))

	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
