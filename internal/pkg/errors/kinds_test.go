package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", Invalid("bad title"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"conflict", Conflict("taken"), http.StatusConflict},
		{"wrapped", pkgerrors.Wrap(Conflict("taken"), "create org"), http.StatusConflict},
		{"fmt wrapped", fmt.Errorf("outer: %w", Forbidden("x")), http.StatusForbidden},
		{"plain", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestWriteAppError(t *testing.T) {
	t.Run("classified error keeps its message", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteAppError(rr, NotFound("Board not found"))

		require.Equal(t, http.StatusNotFound, rr.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, ErrCodeNotFound, body.Code)
		assert.Equal(t, "Board not found", body.Message)
	})

	t.Run("internal error is masked", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteAppError(rr, fmt.Errorf("pq: relation does not exist"))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, ErrCodeInternal, body.Code)
		assert.NotContains(t, body.Message, "relation")
	})
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Conflict("x"), KindConflict))
	assert.False(t, Is(nil, KindInternal))
	assert.False(t, Is(Conflict("x"), KindNotFound))
}
