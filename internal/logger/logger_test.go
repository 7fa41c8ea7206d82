package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	sphttp "github.com/wolfeidau/sitepack/internal/http"
)

func TestSetup_Level(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}

func TestRequests(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := sphttp.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Debug().Msg("inside")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}), sphttp.ClientIPMiddleware(), Requests(log))

	r := httptest.NewRequest(http.MethodGet, "/assets/logo.png", nil)
	r.Header.Set("X-Real-IP", "192.168.1.100")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	require.Equal(t, "http request", entry["message"])
	require.Equal(t, "GET", entry["method"])
	require.Equal(t, "/assets/logo.png", entry["path"])
	require.Equal(t, "192.168.1.100", entry["addr"])
	require.EqualValues(t, http.StatusNotFound, entry["status"])
	require.EqualValues(t, len("missing"), entry["bytes"])
}
