package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kmlixh/consulWatch/consul/consultest"
	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
	"github.com/kmlixh/consulWatch/metrics"
	"github.com/kmlixh/consulWatch/sink"
	"github.com/kmlixh/consulWatch/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T) (*Server, *sink.Properties) {
	t.Helper()
	srv := consultest.NewServer()
	srv.Put("config/app/server/port", "8080")
	_, err := srv.FireEvent(context.Background(), "deploy", []byte("v1"))
	require.NoError(t, err)

	m := metrics.New()
	props := sink.NewProperties()
	kvWatcher, err := kv.NewWatcher(srv, []string{"config/app/"}, props, kv.WithMetrics(m), kv.WithInitialEmit(true))
	require.NoError(t, err)
	eventWatcher := event.NewWatcher(srv, event.SinkFunc(func(ctx context.Context, msg event.Message) error { return nil }),
		event.WithName("deploy"), event.WithMetrics(m))

	require.NoError(t, kvWatcher.Poll(context.Background()))
	require.NoError(t, eventWatcher.Poll(context.Background()))

	group := watch.NewGroup(nil)
	require.NoError(t, group.Add("kv", kvWatcher, time.Hour))

	return New(nil, Options{
		Metrics:    m,
		Group:      group,
		KV:         kvWatcher,
		Events:     eventWatcher,
		Properties: props,
	}), props
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Watches(t *testing.T) {
	s, _ := setupServer(t)

	w := get(t, s, "/watches")
	require.Equal(t, http.StatusOK, w.Code)

	var resp WatchesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "kv", resp.Tasks[0].Name)
	assert.Equal(t, watch.StateUninitialized, resp.Tasks[0].State)
	require.Len(t, resp.Contexts, 1)
	assert.Equal(t, []string{"server.port"}, resp.Contexts[0].Keys)
	require.NotNil(t, resp.Event)
	assert.Equal(t, "deploy", resp.Event.Name)
	assert.True(t, resp.Event.IndexKnown)
	assert.EqualValues(t, 2, resp.Counters["poll_count"])
}

func TestServer_Properties(t *testing.T) {
	s, _ := setupServer(t)

	w := get(t, s, "/properties")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"server.port":"8080"}`, w.Body.String())

	w = get(t, s, "/properties/server.port")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"server.port","value":"8080"}`, w.Body.String())

	w = get(t, s, "/properties/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := setupServer(t)

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "consulwatch_polls_total"))
	assert.True(t, strings.Contains(body, `consulwatch_kv_changes_total{type="changed"} 1`))
}

func TestServer_Health(t *testing.T) {
	s := New(nil, Options{})
	w := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, s, "/watches")
	assert.JSONEq(t, `{"tasks":[]}`, w.Body.String())
}
