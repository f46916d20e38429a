package board

import (
	"golang.org/x/exp/slices"

	"github.com/vanshika/pursuit/backend/internal/domain"
)

// Edges holds the neighbors of one node, split by transport tier.
type Edges struct {
	Taxi        []int
	Bus         []int
	Underground []int
}

// For returns the neighbor list of a tier.
func (e Edges) For(t domain.Tier) []int {
	switch t {
	case domain.TierTaxi:
		return e.Taxi
	case domain.TierBus:
		return e.Bus
	case domain.TierUnderground:
		return e.Underground
	default:
		return nil
	}
}

// Empty reports whether the node has no neighbors at all.
func (e Edges) Empty() bool {
	return len(e.Taxi) == 0 && len(e.Bus) == 0 && len(e.Underground) == 0
}

func (e *Edges) add(t domain.Tier, node int) {
	switch t {
	case domain.TierTaxi:
		e.Taxi = insertSorted(e.Taxi, node)
	case domain.TierBus:
		e.Bus = insertSorted(e.Bus, node)
	case domain.TierUnderground:
		e.Underground = insertSorted(e.Underground, node)
	}
}

func insertSorted(list []int, node int) []int {
	idx, found := slices.BinarySearch(list, node)
	if found {
		return list
	}
	return slices.Insert(list, idx, node)
}

// Graph is the static transport board. It is built once and only read afterwards,
// so it is safe for concurrent use once construction is finished.
type Graph struct {
	nodes map[int]Edges
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[int]Edges)}
}

// AddNode registers a node, keeping any edges it already has.
func (g *Graph) AddNode(node int) {
	if _, ok := g.nodes[node]; !ok {
		g.nodes[node] = Edges{}
	}
}

// SetEdges replaces the adjacency of a node.
func (g *Graph) SetEdges(node int, edges Edges) {
	normalized := Edges{}
	for _, t := range domain.Tiers {
		for _, n := range edges.For(t) {
			normalized.add(t, n)
		}
	}
	g.nodes[node] = normalized
}

// Connect adds an edge in both directions for the given tier.
func (g *Graph) Connect(a, b int, t domain.Tier) {
	ea := g.nodes[a]
	ea.add(t, b)
	g.nodes[a] = ea

	eb := g.nodes[b]
	eb.add(t, a)
	g.nodes[b] = eb
}

// Edges returns the adjacency of a node; unknown nodes have none.
func (g *Graph) Edges(node int) Edges {
	return g.nodes[node]
}

// Neighbors returns the nodes reachable from node using tier t.
func (g *Graph) Neighbors(node int, t domain.Tier) []int {
	return g.nodes[node].For(t)
}

// AllNeighbors returns the union of every tier's neighbors, ascending.
func (g *Graph) AllNeighbors(node int) []int {
	edges := g.nodes[node]
	out := make([]int, 0, len(edges.Taxi)+len(edges.Bus)+len(edges.Underground))
	out = append(out, edges.Taxi...)
	out = append(out, edges.Bus...)
	out = append(out, edges.Underground...)
	slices.Sort(out)
	return slices.Compact(out)
}

// HasEdge reports whether from and to are connected by tier t.
func (g *Graph) HasEdge(from, to int, t domain.Tier) bool {
	_, found := slices.BinarySearch(g.nodes[from].For(t), to)
	return found
}

// Adjacent reports whether to is reachable from from on any tier.
func (g *Graph) Adjacent(from, to int) bool {
	for _, t := range domain.Tiers {
		if g.HasEdge(from, to, t) {
			return true
		}
	}
	return false
}

// CheapestTier picks the lowest-fare tier connecting from and to.
func (g *Graph) CheapestTier(from, to int) (domain.Tier, bool) {
	for _, t := range domain.Tiers {
		if g.HasEdge(from, to, t) {
			return t, true
		}
	}
	return 0, false
}

// Has reports whether node is part of the board.
func (g *Graph) Has(node int) bool {
	_, ok := g.nodes[node]
	return ok
}

// Nodes returns every node id, ascending.
func (g *Graph) Nodes() []int {
	out := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeRecord is one stored board row: a node id and its raw adjacency payload.
type NodeRecord struct {
	NodeID      int
	Connections any
}

// Build normalizes every record into a graph. Records whose payload cannot be decoded
// still become nodes, with no neighbors; their ids are returned so callers can log them.
func Build(records []NodeRecord) (*Graph, []int) {
	g := New()
	var malformed []int
	for _, rec := range records {
		edges, err := DecodeConnections(rec.Connections)
		if err != nil {
			malformed = append(malformed, rec.NodeID)
			g.AddNode(rec.NodeID)
			continue
		}
		g.SetEdges(rec.NodeID, edges)
	}
	slices.Sort(malformed)
	return g, malformed
}
