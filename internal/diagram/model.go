// Package diagram renders a scenario as a flowchart: one node per step in
// execution order, optionally overlaid with the step statuses of a run.
package diagram

// NodeKind classifies a node by the kind of work its step does.
type NodeKind string

const (
	NodeKindStart   NodeKind = "start"
	NodeKindEnd     NodeKind = "end"
	NodeKindStore   NodeKind = "store"
	NodeKindProcess NodeKind = "process"
	NodeKindSend    NodeKind = "send"
)

// Overlay statuses. StatusSkipped marks steps a failed run never reached.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is a single step, or the virtual start or end.
type Node struct {
	ID     string
	Label  string
	Detail string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries the recorded outcome of a step.
type StatusOverlay struct {
	Status string
	Error  string
}

// Edge links two nodes. Data edges connect a step to an earlier,
// non-adjacent step whose output it references.
type Edge struct {
	From  string
	To    string
	Label string
	Data  bool
}

func (m *Model) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
