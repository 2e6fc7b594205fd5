package graph

import "sync"

// Graph is the node/edge structure of a workflow definition. Once published it
// is treated as immutable, lookups are served from an index built on first use.
type Graph struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
	Edges []*Edge `json:"edges" yaml:"edges"`

	once     sync.Once
	nodes    map[string]*Node
	outgoing map[string][]*Edge
	incoming map[string][]*Edge
}

func (g *Graph) init() {
	g.once.Do(func() {
		g.nodes = make(map[string]*Node, len(g.Nodes))
		g.outgoing = make(map[string][]*Edge)
		g.incoming = make(map[string][]*Edge)
		for _, node := range g.Nodes {
			if node == nil {
				continue
			}
			if _, ok := g.nodes[node.ID]; !ok {
				g.nodes[node.ID] = node
			}
		}
		for _, edge := range g.Edges {
			if edge == nil {
				continue
			}
			g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
			g.incoming[edge.Target] = append(g.incoming[edge.Target], edge)
		}
	})
}

// Node returns a node by id or nil.
func (g *Graph) Node(id string) *Node {
	g.init()
	return g.nodes[id]
}

// OutgoingEdges returns the edges leaving the node in declaration order.
func (g *Graph) OutgoingEdges(id string) []*Edge {
	g.init()
	return g.outgoing[id]
}

// IncomingEdges returns the edges entering the node in declaration order.
func (g *Graph) IncomingEdges(id string) []*Edge {
	g.init()
	return g.incoming[id]
}

// Edge returns an edge by id or nil.
func (g *Graph) Edge(id string) *Edge {
	for _, edge := range g.Edges {
		if edge != nil && edge.ID == id {
			return edge
		}
	}
	return nil
}

// Start returns the first start node or nil.
func (g *Graph) Start() *Node {
	for _, node := range g.Nodes {
		if node != nil && node.Type == NodeTypeStart {
			return node
		}
	}
	return nil
}

// Next returns the single successor of a pass-through node.
func (g *Graph) Next(id string) (string, bool) {
	edges := g.OutgoingEdges(id)
	if len(edges) != 1 {
		return "", false
	}
	return edges[0].Target, true
}

// JoinOf returns the join node id declared by a parallel split.
func (g *Graph) JoinOf(splitID string) string {
	if cfg := g.Node(splitID).Parallel(); cfg != nil {
		return cfg.JoinNodeID
	}
	return ""
}
