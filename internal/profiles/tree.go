package profiles

// Node is a profile with its descendants.
type Node struct {
	Profile  Profile `json:"profile"`
	Children []Node  `json:"children,omitempty"`
}

// Tree builds the inheritance forest of the index.
func (idx Index) Tree() []Node {
	roots := idx.Roots()
	nodes := make([]Node, 0, len(roots))
	for _, root := range roots {
		nodes = append(nodes, idx.subtree(root, map[string]bool{}))
	}
	return nodes
}

func (idx Index) subtree(p Profile, seen map[string]bool) Node {
	seen[p.Key] = true
	node := Node{Profile: p}
	for _, child := range idx.Children(p.Key) {
		if seen[child.Key] {
			continue
		}
		node.Children = append(node.Children, idx.subtree(child, seen))
	}
	return node
}

// Walk visits every node depth-first with its depth.
func Walk(nodes []Node, fn func(n Node, depth int)) {
	var visit func(n Node, depth int)
	visit = func(n Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, n := range nodes {
		visit(n, 0)
	}
}
