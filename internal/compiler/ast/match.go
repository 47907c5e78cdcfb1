package ast

// Collect walks the tree depth-first in pre-order and calls visit on every node of
// the given kind. Children of a matched node are still visited, so disjoint and
// nested matches are all reported. It returns whether any node matched.
func Collect(root *Node, kind Kind, visit func(*Node)) bool {
	if root == nil {
		return false
	}
	matched := false
	if root.Kind == kind {
		visit(root)
		matched = true
	}
	for _, child := range root.Children {
		if Collect(child, kind, visit) {
			matched = true
		}
	}
	return matched
}

// First walks the tree depth-first in pre-order and returns the result of compute
// for the first node of the given kind for which compute reports ok. The search
// stops there; siblings and the rest of the tree are not visited. When compute
// declines a node the search continues into that node's children.
func First[T any](root *Node, kind Kind, compute func(*Node) (T, bool)) (T, bool) {
	var zero T
	if root == nil {
		return zero, false
	}
	if root.Kind == kind {
		if out, ok := compute(root); ok {
			return out, true
		}
	}
	for _, child := range root.Children {
		if out, ok := First(child, kind, compute); ok {
			return out, true
		}
	}
	return zero, false
}

// FirstNode returns the first node of the given kind in pre-order
func FirstNode(root *Node, kind Kind) *Node {
	n, _ := First(root, kind, func(n *Node) (*Node, bool) { return n, true })
	return n
}

// RewriteFunc returns the replacement for a node whose children have already been
// rewritten. Returning the argument unchanged keeps it.
type RewriteFunc func(*Node) (*Node, error)

// Rewrite applies fn bottom-up and returns the new tree. A node is copied only when
// one of its children was replaced; untouched subtrees are shared with the input,
// so everything fn leaves alone comes out identical.
func Rewrite(root *Node, fn RewriteFunc) (*Node, error) {
	if root == nil {
		return nil, nil
	}
	var children []*Node
	for i, child := range root.Children {
		out, err := Rewrite(child, fn)
		if err != nil {
			return nil, err
		}
		if out != child && children == nil {
			children = make([]*Node, len(root.Children))
			copy(children, root.Children[:i])
		}
		if children != nil {
			children[i] = out
		}
	}
	node := root
	if children != nil {
		node = root.WithChildren(children...)
	}
	return fn(node)
}

// Replace returns a copy of root in which the node target (compared by identity)
// is swapped for replacement
func Replace(root, target, replacement *Node) *Node {
	out, _ := Rewrite(root, func(n *Node) (*Node, error) {
		if n == target {
			return replacement, nil
		}
		return n, nil
	})
	return out
}
