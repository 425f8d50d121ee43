package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockgate/stockgate/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: skuId is required", shared.ErrValidation), http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("%w: adjustment request x", shared.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("%w: already decided", shared.ErrConflict), http.StatusConflict, CodeConflict},
		{fmt.Errorf("%w: on-hand too low", shared.ErrNegativeStock), http.StatusConflict, CodeNegativeStock},
		{shared.ErrUnauthorized, http.StatusUnauthorized, CodeAuth},
		{shared.ErrForbidden, http.StatusForbidden, CodeAuth},
		{fmt.Errorf("pool exhausted"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.False(t, env.Success)
			require.Equal(t, tc.code, env.Error)
			require.NotEmpty(t, env.Message)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "internal error", env.Message)
}

func TestJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Empty(t, env.Error)
}
