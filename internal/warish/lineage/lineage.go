// Package lineage assembles family members into an ordered forest.
//
// Building is iterative: members are indexed by parent id into an arena and
// expanded breadth-first, so hierarchy depth never grows the call stack. A
// configured depth limit is enforced with an explicit error instead of
// truncating the tree.
package lineage

import (
	"fmt"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

// Node is one family member with its materialized children.
type Node struct {
	Member   *models.FamilyMember `json:"member"`
	Depth    int                  `json:"depth"`
	Children []*Node              `json:"children"`
}

// Tree is the ordered forest of an application's family members.
type Tree struct {
	Roots []*Node `json:"roots"`
	size  int
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return t.size }

type options struct {
	maxDepth int
}

// Option configures Build.
type Option func(*options)

// WithMaxDepth limits the number of nodes on any root-to-leaf chain.
// Zero or negative means unlimited.
func WithMaxDepth(d int) Option {
	return func(o *options) {
		o.maxDepth = d
	}
}

// Build links members into a forest. Roots and siblings keep the order in
// which members appear in the input, which callers load by capture position.
func Build(members []*models.FamilyMember, opts ...Option) (*Tree, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	known := make(map[id.MemberID]struct{}, len(members))
	for _, m := range members {
		if m == nil {
			return nil, dErrors.New(dErrors.CodeCorruptHierarchy, "nil family member")
		}
		if _, dup := known[m.ID]; dup {
			return nil, corrupt("duplicate member id", m.ID)
		}
		known[m.ID] = struct{}{}
	}

	// Arena: children grouped by parent id, in input order.
	children := make(map[id.MemberID][]*models.FamilyMember, len(members))
	var roots []*models.FamilyMember
	for _, m := range members {
		if m.ParentID == nil {
			roots = append(roots, m)
			continue
		}
		parent := *m.ParentID
		if parent == m.ID {
			return nil, corrupt("member is its own parent", m.ID)
		}
		if _, ok := known[parent]; !ok {
			return nil, corrupt("parent not found", m.ID)
		}
		children[parent] = append(children[parent], m)
	}

	tree := &Tree{Roots: make([]*Node, 0, len(roots))}
	queue := make([]*Node, 0, len(members))
	for _, r := range roots {
		n := &Node{Member: r, Depth: 1}
		tree.Roots = append(tree.Roots, n)
		queue = append(queue, n)
	}

	visited := make(map[id.MemberID]struct{}, len(members))
	for head := 0; head < len(queue); head++ {
		n := queue[head]
		if _, seen := visited[n.Member.ID]; seen {
			return nil, corrupt("cycle detected", n.Member.ID)
		}
		visited[n.Member.ID] = struct{}{}

		if o.maxDepth > 0 && n.Depth > o.maxDepth {
			return nil, dErrors.New(dErrors.CodeDepthExceeded,
				fmt.Sprintf("family tree is deeper than the configured limit of %d", o.maxDepth)).
				WithDetail("member_id", n.Member.ID.String())
		}

		kids := children[n.Member.ID]
		n.Children = make([]*Node, 0, len(kids))
		for _, c := range kids {
			child := &Node{Member: c, Depth: n.Depth + 1}
			n.Children = append(n.Children, child)
			queue = append(queue, child)
		}
	}

	// Anything not reached from a root sits on a parent cycle.
	if len(visited) != len(members) {
		for _, m := range members {
			if _, ok := visited[m.ID]; !ok {
				return nil, corrupt("member unreachable from any root", m.ID)
			}
		}
	}
	tree.size = len(visited)
	return tree, nil
}

// Walk visits nodes breadth-first, roots first, until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	queue := append([]*Node(nil), t.Roots...)
	for head := 0; head < len(queue); head++ {
		n := queue[head]
		if !fn(n) {
			return
		}
		queue = append(queue, n.Children...)
	}
}

// Depth returns the length of the longest root-to-leaf chain.
func (t *Tree) Depth() int {
	deepest := 0
	t.Walk(func(n *Node) bool {
		if n.Depth > deepest {
			deepest = n.Depth
		}
		return true
	})
	return deepest
}

func corrupt(msg string, memberID id.MemberID) *dErrors.Error {
	return dErrors.New(dErrors.CodeCorruptHierarchy, msg).WithDetail("member_id", memberID.String())
}
