package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	apperrors "contextpilot/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onboardedGraph builds the user/role/goal/course fixture
func onboardedGraph(t *testing.T) *ContextGraph {
	t.Helper()
	g := NewContextGraph()
	require.NoError(t, g.AddNode("U", "User", NewAttributes(Attr("name", String("Ada")))))
	require.NoError(t, g.AddNode("role_U", "Role", NewAttributes(Attr("value", String("Student")))))
	require.NoError(t, g.AddNode("goal_U", "Goal", NewAttributes(Attr("title", String("Pass ML")))))
	require.NoError(t, g.AddNode("course_U", "Course", NewAttributes(Attr("name", String("ML101")))))
	_, err := g.AddEdge("U", "role_U", "HAS_ROLE")
	require.NoError(t, err)
	_, err = g.AddEdge("U", "goal_U", "WORKING_ON")
	require.NoError(t, err)
	_, err = g.AddEdge("goal_U", "course_U", "RELATED_TO")
	require.NoError(t, err)
	return g
}

func nodeIDs(n Neighborhood) []string {
	ids := make([]string, 0, len(n.Nodes))
	for id := range n.Nodes {
		ids = append(ids, id)
	}
	return ids
}

func TestNeighborhood_OnboardingScenario(t *testing.T) {
	g := onboardedGraph(t)

	two := g.Neighborhood("U", 2)
	assert.ElementsMatch(t, []string{"U", "role_U", "goal_U", "course_U"}, nodeIDs(two))
	require.Len(t, two.Edges, 3)
	assert.Equal(t, "HAS_ROLE", two.Edges[0].Relation)
	assert.Equal(t, "WORKING_ON", two.Edges[1].Relation)
	assert.Equal(t, "RELATED_TO", two.Edges[2].Relation)

	one := g.Neighborhood("U", 1)
	assert.ElementsMatch(t, []string{"U", "role_U", "goal_U"}, nodeIDs(one))
	require.Len(t, one.Edges, 2)
	assert.Equal(t, Edge{Source: "U", Target: "role_U", Relation: "HAS_ROLE", Seq: 0}, one.Edges[0])
	assert.Equal(t, Edge{Source: "U", Target: "goal_U", Relation: "WORKING_ON", Seq: 1}, one.Edges[1])

	assert.Equal(t, two, g.UserContext("U"))
}

func TestNeighborhood_RadiusZero(t *testing.T) {
	g := onboardedGraph(t)

	n := g.Neighborhood("goal_U", 0)
	assert.Equal(t, []string{"goal_U"}, nodeIDs(n))
	assert.Empty(t, n.Edges)

	assert.Equal(t, n, g.Neighborhood("goal_U", -3))
}

func TestNeighborhood_MissingNode(t *testing.T) {
	g := onboardedGraph(t)

	n := g.Neighborhood("nobody", 2)
	assert.NotNil(t, n.Nodes)
	assert.NotNil(t, n.Edges)
	assert.True(t, n.IsEmpty())

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":{},"edges":[]}`, string(raw))
}

func TestNeighborhood_IgnoresDirectionForReachability(t *testing.T) {
	g := onboardedGraph(t)

	// course_U only has an incoming edge, yet reaches U in two hops
	n := g.Neighborhood("course_U", 2)
	assert.ElementsMatch(t, []string{"course_U", "goal_U", "U"}, nodeIDs(n))
	require.Len(t, n.Edges, 2)
	assert.Equal(t, "U", n.Edges[0].Source)
	assert.Equal(t, "goal_U", n.Edges[0].Target)
	assert.Equal(t, "goal_U", n.Edges[1].Source)
	assert.Equal(t, "course_U", n.Edges[1].Target)
}

func TestNeighborhood_ParallelEdgesAndSelfLoops(t *testing.T) {
	g := NewContextGraph()
	require.NoError(t, g.AddNode("a", "User", nil))
	require.NoError(t, g.AddNode("b", "Goal", nil))
	_, err := g.AddEdge("a", "b", "WORKING_ON")
	require.NoError(t, err)
	_, err = g.AddEdge("a", "b", "WORKING_ON")
	require.NoError(t, err)
	_, err = g.AddEdge("b", "a", "OWNED_BY")
	require.NoError(t, err)
	_, err = g.AddEdge("a", "a", "SELF")
	require.NoError(t, err)

	n := g.Neighborhood("a", 1)
	require.Len(t, n.Edges, 4)
	for i, e := range n.Edges {
		assert.Equal(t, i, e.Seq)
	}

	zero := g.Neighborhood("a", 0)
	require.Len(t, zero.Edges, 1)
	assert.Equal(t, "SELF", zero.Edges[0].Relation)
}

func TestNeighborhood_ReturnsCopies(t *testing.T) {
	g := onboardedGraph(t)

	n := g.Neighborhood("U", 0)
	node := n.Nodes["U"]
	node.Attributes.Set("name", String("Mallory"))

	stored, ok := g.Node("U")
	require.True(t, ok)
	name, _ := stored.Attributes.Get("name")
	assert.Equal(t, "Ada", name.String())
}

// TestNeighborhood_MatchesBruteForce checks soundness and completeness against
// an all-pairs shortest path over random multigraphs.
func TestNeighborhood_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 25; trial++ {
		g := NewContextGraph()
		size := 2 + rng.Intn(12)
		for i := 0; i < size; i++ {
			require.NoError(t, g.AddNode(fmt.Sprintf("n%d", i), "Node", nil))
		}
		edgeCount := rng.Intn(size * 2)
		type pair struct{ a, b int }
		var pairs []pair
		for i := 0; i < edgeCount; i++ {
			a, b := rng.Intn(size), rng.Intn(size)
			pairs = append(pairs, pair{a, b})
			_, err := g.AddEdge(fmt.Sprintf("n%d", a), fmt.Sprintf("n%d", b), "REL")
			require.NoError(t, err)
		}

		const inf = 1 << 20
		dist := make([][]int, size)
		for i := range dist {
			dist[i] = make([]int, size)
			for j := range dist[i] {
				dist[i][j] = inf
			}
			dist[i][i] = 0
		}
		for _, p := range pairs {
			if p.a != p.b {
				dist[p.a][p.b] = 1
				dist[p.b][p.a] = 1
			}
		}
		for k := 0; k < size; k++ {
			for i := 0; i < size; i++ {
				for j := 0; j < size; j++ {
					if dist[i][k]+dist[k][j] < dist[i][j] {
						dist[i][j] = dist[i][k] + dist[k][j]
					}
				}
			}
		}

		start := rng.Intn(size)
		for radius := 0; radius <= 3; radius++ {
			n := g.Neighborhood(fmt.Sprintf("n%d", start), radius)
			var want []string
			for j := 0; j < size; j++ {
				if dist[start][j] <= radius {
					want = append(want, fmt.Sprintf("n%d", j))
				}
			}
			assert.ElementsMatch(t, want, nodeIDs(n), "trial %d radius %d", trial, radius)

			expectedEdges := 0
			for _, p := range pairs {
				if dist[start][p.a] <= radius && dist[start][p.b] <= radius {
					expectedEdges++
				}
			}
			assert.Len(t, n.Edges, expectedEdges, "trial %d radius %d", trial, radius)
		}
	}
}

func TestAddEdge_StrictRejectsMissingEndpoints(t *testing.T) {
	g := NewContextGraph()
	require.NoError(t, g.AddNode("u", "User", nil))

	_, err := g.AddEdge("u", "ghost", "SENT")
	var notFound *apperrors.ErrGraphNodeNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ghost", notFound.NodeID)

	assert.False(t, g.NodeExists("ghost"))
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 1, g.NodeCount())
}

func TestAddEdge_AutoCreateEndpoints(t *testing.T) {
	g := NewContextGraph(WithAutoCreateEndpoints(true))

	edge, err := g.AddEdge("a", "b", "LINKS")
	require.NoError(t, err)
	assert.Equal(t, 0, edge.Seq)
	assert.True(t, g.NodeExists("a"))
	assert.True(t, g.NodeExists("b"))

	placeholder, _ := g.Node("b")
	assert.Empty(t, placeholder.Type)
	assert.Empty(t, placeholder.Attributes)

	// A placeholder can later receive its type
	require.NoError(t, g.AddNode("b", "Goal", NewAttributes(Attr("title", String("x")))))
	typed, _ := g.Node("b")
	assert.Equal(t, "Goal", typed.Type)
}

func TestAddEdge_RequiresRelation(t *testing.T) {
	g := onboardedGraph(t)
	_, err := g.AddEdge("U", "goal_U", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeGraph))
	assert.Equal(t, 3, g.EdgeCount())
}

func TestAddNode_DuplicatePolicies(t *testing.T) {
	first := NewAttributes(Attr("name", String("Ada")), Attr("age", Number(36)))
	second := NewAttributes(Attr("name", String("Grace")), Attr("active", Bool(true)))

	t.Run("overwrite", func(t *testing.T) {
		g := NewContextGraph()
		require.NoError(t, g.AddNode("u", "User", first))
		require.NoError(t, g.AddNode("u", "User", second))
		n, _ := g.Node("u")
		assert.Equal(t, second, n.Attributes)
	})

	t.Run("merge", func(t *testing.T) {
		g := NewContextGraph(WithDuplicatePolicy(PolicyMerge))
		require.NoError(t, g.AddNode("u", "User", first))
		require.NoError(t, g.AddNode("u", "User", second))
		n, _ := g.Node("u")
		raw, err := json.Marshal(n.Attributes)
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Grace","age":36,"active":true}`, string(raw))
	})

	t.Run("reject", func(t *testing.T) {
		g := NewContextGraph(WithDuplicatePolicy(PolicyReject))
		require.NoError(t, g.AddNode("u", "User", first))
		err := g.AddNode("u", "User", second)
		var exists *apperrors.ErrGraphNodeExists
		require.True(t, errors.As(err, &exists))
		n, _ := g.Node("u")
		assert.Equal(t, first, n.Attributes)
	})
}

func TestAddNode_TypeConflict(t *testing.T) {
	g := NewContextGraph()
	require.NoError(t, g.AddNode("x", "Goal", nil))

	err := g.AddNode("x", "Course", nil)
	var conflict *apperrors.ErrGraphTypeConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Goal", conflict.Existing)
	assert.Equal(t, "Course", conflict.Proposed)

	n, _ := g.Node("x")
	assert.Equal(t, "Goal", n.Type)
}

func TestNodeExists_TracksInsertions(t *testing.T) {
	g := NewContextGraph(WithAutoCreateEndpoints(true))
	assert.False(t, g.NodeExists("a"))

	require.NoError(t, g.AddNode("a", "User", nil))
	_, err := g.AddEdge("a", "c", "REL")
	require.NoError(t, err)

	assert.True(t, g.NodeExists("a"))
	assert.True(t, g.NodeExists("c"))
	assert.False(t, g.NodeExists("b"))
}

func TestSnapshot_InsertionOrder(t *testing.T) {
	g := onboardedGraph(t)

	snap := g.Snapshot()
	require.Len(t, snap.Nodes, 4)
	assert.Equal(t, "U", snap.Nodes[0].ID)
	assert.Equal(t, "course_U", snap.Nodes[3].ID)
	require.Len(t, snap.Edges, 3)
	assert.Equal(t, "RELATED_TO", snap.Edges[2].Relation)
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("Merge")
	require.NoError(t, err)
	assert.Equal(t, PolicyMerge, p)

	p, err = ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOverwrite, p)

	_, err = ParseDuplicatePolicy("ignore")
	assert.Error(t, err)
}
