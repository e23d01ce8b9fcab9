package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"contextpilot/backend/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultRadius is the hop limit used for user context queries
const DefaultRadius = 2

// DuplicatePolicy controls what AddNode does with an id that already exists
type DuplicatePolicy int

const (
	// PolicyOverwrite replaces the node's attributes (last write wins)
	PolicyOverwrite DuplicatePolicy = iota
	// PolicyMerge applies the new attributes on top of the existing ones
	PolicyMerge
	// PolicyReject refuses to touch an existing node
	PolicyReject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case PolicyMerge:
		return "merge"
	case PolicyReject:
		return "reject"
	default:
		return "overwrite"
	}
}

// ParseDuplicatePolicy maps a config value to a policy
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return PolicyOverwrite, nil
	case "merge":
		return PolicyMerge, nil
	case "reject":
		return PolicyReject, nil
	}
	return PolicyOverwrite, fmt.Errorf("unknown duplicate policy %q", s)
}

// Option configures a ContextGraph
type Option func(*ContextGraph)

// WithAutoCreateEndpoints makes AddEdge create untyped placeholder nodes for
// missing endpoints instead of failing
func WithAutoCreateEndpoints(enabled bool) Option {
	return func(g *ContextGraph) {
		g.autoCreate = enabled
	}
}

// WithDuplicatePolicy sets the AddNode behavior for existing ids
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(g *ContextGraph) {
		g.policy = p
	}
}

// WithLogger overrides the global logger
func WithLogger(l *zap.Logger) Option {
	return func(g *ContextGraph) {
		g.logger = l
	}
}

// ContextGraph is an in-memory directed multigraph of typed nodes and
// relation-labeled edges. It only grows: nothing is ever deleted.
type ContextGraph struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	order     []string
	edges     []Edge
	adjacency map[string][]int // node id -> indexes into edges, both directions

	autoCreate bool
	policy     DuplicatePolicy
	logger     *zap.Logger
}

// NewContextGraph creates an empty graph
func NewContextGraph(opts ...Option) *ContextGraph {
	g := &ContextGraph{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]int),
		policy:    PolicyOverwrite,
		logger:    logger.Named("graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode inserts a node or updates an existing one according to the
// duplicate policy. A typed node never changes type.
func (g *ContextGraph) AddNode(id, nodeType string, attrs Attributes) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.nodes[id]
	if !ok {
		g.insertNodeLocked(id, nodeType, attrs.Clone())
		g.logger.Debug("Node added",
			zap.String("node_id", id),
			zap.String("type", nodeType),
		)
		return nil
	}

	if existing.Type != "" && existing.Type != nodeType {
		return apperrors.NewGraphTypeConflict(id, existing.Type, nodeType)
	}

	// Placeholders from auto-created endpoints are filled in regardless of policy
	if existing.Type == "" {
		existing.Type = nodeType
		existing.Attributes = existing.Attributes.Merge(attrs)
		return nil
	}

	switch g.policy {
	case PolicyReject:
		return apperrors.NewGraphNodeExists(id)
	case PolicyMerge:
		existing.Attributes = existing.Attributes.Merge(attrs)
	default:
		existing.Attributes = attrs.Clone()
	}

	g.logger.Debug("Node updated",
		zap.String("node_id", id),
		zap.String("policy", g.policy.String()),
	)
	return nil
}

// AddEdge appends a labeled edge. Missing endpoints fail with
// ErrGraphNodeNotFound unless auto-creation is enabled.
func (g *ContextGraph) AddEdge(source, target, relation string) (Edge, error) {
	if relation == "" {
		return Edge{}, apperrors.NewGraphInvalidEdge(source, target, "relation is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{source, target} {
		if _, ok := g.nodes[id]; ok {
			continue
		}
		if !g.autoCreate {
			return Edge{}, apperrors.NewGraphNodeNotFound(id)
		}
	}
	for _, id := range []string{source, target} {
		if _, ok := g.nodes[id]; !ok {
			g.insertNodeLocked(id, "", Attributes{})
			g.logger.Debug("Placeholder node created for edge endpoint", zap.String("node_id", id))
		}
	}

	edge := Edge{
		Source:   source,
		Target:   target,
		Relation: relation,
		Seq:      len(g.edges),
	}
	g.edges = append(g.edges, edge)
	g.adjacency[source] = append(g.adjacency[source], edge.Seq)
	if target != source {
		g.adjacency[target] = append(g.adjacency[target], edge.Seq)
	}
	metrics.GraphEdges.Set(float64(len(g.edges)))

	return edge, nil
}

// NodeExists reports whether id is a node of the graph
func (g *ContextGraph) NodeExists(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node stored under id
func (g *ContextGraph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// NodeCount returns the number of nodes
func (g *ContextGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *ContextGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// UserContext returns the DefaultRadius neighborhood of a user node
func (g *ContextGraph) UserContext(userID string) Neighborhood {
	return g.Neighborhood(userID, DefaultRadius)
}

// Neighborhood returns every node within radius hops of id, walking edges in
// either direction, plus all edges between those nodes with their original
// direction. An unknown id yields an empty neighborhood; a negative radius
// behaves like 0.
func (g *ContextGraph) Neighborhood(id string, radius int) Neighborhood {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return emptyNeighborhood()
	}

	visited := map[string]struct{}{id: {}}
	frontier := []string{id}
	for depth := 0; depth < radius && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, idx := range g.adjacency[current] {
				edge := g.edges[idx]
				other := edge.Target
				if other == current {
					other = edge.Source
				}
				if _, seen := visited[other]; seen {
					continue
				}
				visited[other] = struct{}{}
				next = append(next, other)
			}
		}
		frontier = next
	}

	result := Neighborhood{
		Nodes: make(map[string]Node, len(visited)),
		Edges: []Edge{},
	}
	edgeIdx := make(map[int]struct{})
	for nodeID := range visited {
		result.Nodes[nodeID] = g.nodes[nodeID].clone()
		for _, idx := range g.adjacency[nodeID] {
			edge := g.edges[idx]
			_, srcIn := visited[edge.Source]
			_, dstIn := visited[edge.Target]
			if srcIn && dstIn {
				edgeIdx[idx] = struct{}{}
			}
		}
	}

	indexes := make([]int, 0, len(edgeIdx))
	for idx := range edgeIdx {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		result.Edges = append(result.Edges, g.edges[idx])
	}

	return result
}

// Snapshot copies the node and edge tables in insertion order
func (g *ContextGraph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		Nodes: make([]Node, 0, len(g.order)),
		Edges: make([]Edge, len(g.edges)),
	}
	for _, id := range g.order {
		snap.Nodes = append(snap.Nodes, g.nodes[id].clone())
	}
	copy(snap.Edges, g.edges)
	return snap
}

// LogDebug dumps every node and edge at debug level
func (g *ContextGraph) LogDebug(log *zap.Logger) {
	snap := g.Snapshot()
	for _, n := range snap.Nodes {
		log.Debug("graph node",
			zap.String("id", n.ID),
			zap.String("type", n.Type),
			zap.Any("attributes", n.Attributes),
		)
	}
	for _, e := range snap.Edges {
		log.Debug("graph edge",
			zap.String("source", e.Source),
			zap.String("target", e.Target),
			zap.String("relation", e.Relation),
			zap.Int("seq", e.Seq),
		)
	}
}

func (g *ContextGraph) insertNodeLocked(id, nodeType string, attrs Attributes) {
	g.nodes[id] = &Node{ID: id, Type: nodeType, Attributes: attrs}
	g.order = append(g.order, id)
	metrics.GraphNodes.Set(float64(len(g.nodes)))
}
