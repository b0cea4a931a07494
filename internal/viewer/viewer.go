// Package viewer serves simulated runs as a JSON graph over HTTP.
package viewer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/cpm"
	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/orchestrator"
	"github.com/joshharrison/fogsched/internal/scenario"
	"github.com/joshharrison/fogsched/internal/session"
)

// --- Graph types ---

type GraphNode struct {
	ID         int     `json:"id"`
	Name       string  `json:"name,omitempty"`
	VMID       int     `json:"vm_id"`
	Submission int     `json:"submission"`
	Start      float64 `json:"start"`
	Finish     float64 `json:"finish"`
	IsCritical bool    `json:"is_critical"`
	WaveIndex  int     `json:"wave_index"`
}

type GraphEdge struct {
	From     int     `json:"from"`
	To       int     `json:"to"`
	Transfer float64 `json:"transfer"`
}

type GraphMetadata struct {
	RunID      string  `json:"run_id"`
	Scenario   string  `json:"scenario"`
	Algorithm  string  `json:"algorithm"`
	CreatedAt  string  `json:"created_at"`
	TotalTasks int     `json:"total_tasks"`
	TotalWaves int     `json:"total_waves"`
	Makespan   float64 `json:"makespan"`
	TotalCost  float64 `json:"total_cost"`
	Shifted    int     `json:"shifted"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []int         `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph converts a finished run into the normalised Graph clients render.
// Node times are the reconciled job times.
func toGraph(name string, g *graph.TaskGraph, m *cost.Matrix, result *cpm.CPMResult, res *orchestrator.Result) *Graph {
	st := res.State
	nodes := make([]GraphNode, 0, len(g.Tasks))
	var edges []GraphEdge
	for _, id := range g.Order {
		t := g.Tasks[id]
		node := GraphNode{
			ID:         id,
			Name:       t.Name,
			VMID:       t.VMID,
			Submission: t.Submission,
			Start:      t.Start,
			Finish:     t.Finish,
			IsCritical: result.Tasks[id].IsCritical,
			WaveIndex:  result.Tasks[id].Wave,
		}
		if js := st.GetJob(id); js != nil {
			node.Start, node.Finish = js.Start, js.Finish
		}
		nodes = append(nodes, node)

		for _, child := range t.Children {
			edges = append(edges, GraphEdge{From: id, To: child, Transfer: m.Transfer(id, child)})
		}
	}

	out := &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: result.CriticalPath,
		Metadata: GraphMetadata{
			RunID:      st.RunID,
			Scenario:   name,
			Algorithm:  st.Algorithm,
			CreatedAt:  st.StartedAt.Format(time.RFC3339),
			TotalTasks: st.TotalTasks,
			TotalWaves: len(result.Waves),
			Makespan:   st.Makespan,
			TotalCost:  st.TotalCost,
			Shifted:    res.Shifted,
		},
	}
	if res.Assignment != nil {
		out.CriticalPath = res.Assignment.CriticalPath
	}
	return out
}

// Options are the run settings applied to every posted scenario.
type Options struct {
	Algorithm      session.Algorithm
	Planning       session.Options
	SendingLatency float64
}

// --- HTTP server ---

// Server simulates posted scenarios and keeps the latest graph.
type Server struct {
	opts Options

	mu    sync.RWMutex
	graph *Graph
}

// NewServer creates a server with no graph loaded.
func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

// Load simulates a scenario with the server options and makes it the
// current graph. The algorithm query parameter of POST /graph overrides
// opts.Algorithm for that request only.
func (s *Server) Load(ctx context.Context, sc *scenario.Scenario, alg session.Algorithm) (*Graph, error) {
	g, err := sc.Graph()
	if err != nil {
		return nil, err
	}
	m, err := cost.Estimate(g, sc.VMs)
	if err != nil {
		return nil, err
	}
	result, err := cpm.Analyze(g, m)
	if err != nil {
		return nil, errors.Wrap(err, "CPM analysis")
	}

	sess := session.New(alg, s.opts.Planning, session.WithLogger(log.StandardLogger()))
	res, err := orchestrator.New(sess, g, graph.CloneVMs(sc.VMs), orchestrator.Config{Quiet: true}).Run(ctx)
	if err != nil {
		return nil, err
	}
	res.State.Scenario = sc.Name

	out := toGraph(sc.Name, g, m, result, res)
	s.mu.Lock()
	s.graph = out
	s.mu.Unlock()
	return out, nil
}

func (s *Server) handlePostGraph(c *gin.Context) {
	alg := s.opts.Algorithm
	if q := c.Query("algorithm"); q != "" {
		parsed, err := session.ParseAlgorithm(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		alg = parsed
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc, err := scenario.Parse(data, s.opts.SendingLatency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sc.Name == "" {
		sc.Name = "posted"
	}

	g, err := s.Load(c.Request.Context(), sc, alg)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (s *Server) handleGetGraph(c *gin.Context) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no graph loaded"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// statusOf maps scheduling errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInfeasible), errors.Is(err, errs.ErrConfigurationConflict):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Router returns the gin engine serving the graph API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/graph", s.handleGetGraph)
	router.POST("/graph", s.handlePostGraph)
	return router
}

// Start launches the server on the given port in the background.
// Returns the base URL (e.g. "http://localhost:7171") or an error.
func (s *Server) Start(port int) (string, error) {
	gin.SetMode(gin.ReleaseMode)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("listen on port %d: %w", port, err)
	}

	go http.Serve(ln, s.Router())

	addr := fmt.Sprintf("http://localhost:%d", port)
	return addr, nil
}
