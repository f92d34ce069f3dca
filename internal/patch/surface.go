package patch

import "github.com/dgallion1/livemark/internal/vdom"

// Handle is an opaque reference to a live node on a rendered surface. Only
// the surface that issued a handle can interpret it.
type Handle any

// Surface is the narrow adapter the applier mutates through. Implementations
// exist per rendering technology (the in-memory DOM in internal/memdom, a
// browser bridge in a real shell); the applier never sees a concrete widget
// API.
type Surface interface {
	// RootHandle returns the container node the virtual root is bound to.
	RootHandle() Handle
	// CreateSubtree materializes a detached copy of the virtual subtree and
	// returns the handle of its root.
	CreateSubtree(n *vdom.Node) Handle
	// InsertChild attaches child under parent at index, clamped to the
	// current child count.
	InsertChild(parent, child Handle, index int)
	// RemoveChild detaches child from its parent.
	RemoveChild(child Handle)
	// MoveChild detaches child and reattaches it under parent at index.
	MoveChild(child, parent Handle, index int)
	SetAttributes(h Handle, attrs []vdom.Attr)
	SetText(h Handle, text string)
	// ChildHandles returns the current children of parent in order.
	ChildHandles(parent Handle) []Handle
}
