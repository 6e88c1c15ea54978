package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "medrecords", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), "", "")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("medrecords", "json", "warn", &buf)
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "medrecords", line["service"])

	_, err = NewLogger("medrecords", "json", "loud", &buf)
	assert.Error(t, err)
}

func TestMiddlewareLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := middleware.RequestID(Middleware("medrecords", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/patients", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &access))

	assert.Equal(t, "inside", inside["message"])
	assert.NotEmpty(t, inside["req_id"])
	assert.Equal(t, "request", access["message"])
	assert.Equal(t, "/v1/patients", access["path"])
	assert.Equal(t, float64(http.StatusTeapot), access["status"])
	assert.Equal(t, inside["req_id"], access["req_id"])
}
