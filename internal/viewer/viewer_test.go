package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/fogsched/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const chain = `{
  "name": "chain",
  "sending_latency": 1,
  "vms": [
    {"id": 0, "mips": 10, "bandwidth": 100, "cost_per_mips": 0.01},
    {"id": 1, "mips": 5, "bandwidth": 100}
  ],
  "tasks": [
    {"id": 1, "name": "ingest", "length": 100, "children": [2]},
    {"id": 2, "length": 200, "children": [3]},
    {"id": 3, "length": 150}
  ]
}`

func newServer() *Server {
	return NewServer(Options{Algorithm: session.HEFT, Planning: session.DefaultOptions()})
}

func post(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetGraphBeforeLoad(t *testing.T) {
	router := newServer().Router()

	req, _ := http.NewRequest(http.MethodGet, "/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostGraph(t *testing.T) {
	router := newServer().Router()

	w := post(t, router, "/graph", chain)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var g Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Equal(t, "chain", g.Metadata.Scenario)
	assert.Equal(t, "HEFT", g.Metadata.Algorithm)
	assert.Equal(t, 3, g.Metadata.TotalTasks)
	assert.InDelta(t, 45.1, g.Metadata.Makespan, 1e-9)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "ingest", g.Nodes[0].Name)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, []int{1, 2, 3}, g.CriticalPath)

	// The graph stays available for readers
	req, _ := http.NewRequest(http.MethodGet, "/graph", nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestPostGraphAlgorithmOverride(t *testing.T) {
	router := newServer().Router()

	w := post(t, router, "/graph?algorithm=round-robin", chain)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var g Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Equal(t, "ROUNDROBIN", g.Metadata.Algorithm)
}

func TestPostGraphErrors(t *testing.T) {
	router := newServer().Router()

	assert.Equal(t, http.StatusBadRequest, post(t, router, "/graph", `{"tasks": [`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, router, "/graph?algorithm=lottery", chain).Code)

	infeasible := `{"vms": [{"id": 0, "mips": 10, "bandwidth": 1}],
	  "tasks": [{"id": 1, "length": 10, "pes": 4}]}`
	assert.Equal(t, http.StatusUnprocessableEntity, post(t, router, "/graph", infeasible).Code)
}

func TestHealth(t *testing.T) {
	router := newServer().Router()

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
