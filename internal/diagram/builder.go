package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/scenario/internal/resolve"
	"github.com/rendis/scenario/pkg/schema"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// Build constructs a Model from loaded steps. cache is an execution cache
// snapshot; when non-nil every step gets a status overlay.
func Build(sc *schema.Scenario, cache map[string]any) *Model {
	m := &Model{Title: sc.Name}
	m.Nodes = append(m.Nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})

	producers := map[string]string{}
	prev := startID
	for idx, step := range sc.Steps {
		i := idx + 1
		id := fmt.Sprintf("step_%d", i)
		node := &Node{
			ID:     id,
			Label:  fmt.Sprintf("%d. %s", i, step.Label()),
			Detail: detail(step),
			Kind:   kindOf(step.Action),
		}
		if cache != nil {
			node.Status = overlay(cache, i)
		}
		m.Nodes = append(m.Nodes, node)

		m.Edges = append(m.Edges, Edge{From: prev, To: id, Label: outputLabel(sc.Steps, idx-1)})
		m.Edges = append(m.Edges, dataEdges(step, id, prev, producers)...)

		if step.OutputName != "" {
			producers[step.OutputName] = id
		}
		producers[schema.StatusKey(i)] = id
		prev = id
	}

	m.Nodes = append(m.Nodes, &Node{ID: endID, Label: "End", Kind: NodeKindEnd})
	m.Edges = append(m.Edges, Edge{From: prev, To: endID, Label: outputLabel(sc.Steps, len(sc.Steps)-1)})
	return m
}

func kindOf(a schema.Action) NodeKind {
	switch a {
	case schema.ActionManipulate:
		return NodeKindProcess
	case schema.ActionSend:
		return NodeKindSend
	default:
		return NodeKindStore
	}
}

// detail names what the step works on: its collection, process or endpoint.
func detail(step schema.Step) string {
	str := func(key string) string {
		s, _ := step.Kwargs[key].(string)
		return s
	}
	switch step.Action {
	case schema.ActionManipulate:
		return str("process")
	case schema.ActionSend:
		if svc, ep := str("service"), str("endpoint"); svc != "" {
			return svc + "." + ep
		}
	default:
		if col := str("collection"); col != "" {
			if tag := str("document_tag"); tag != "" {
				return col + "/" + tag
			}
			return col
		}
	}
	return ""
}

func outputLabel(steps []schema.Step, idx int) string {
	if idx < 0 || idx >= len(steps) || steps[idx].OutputName == "" {
		return ""
	}
	return "$" + steps[idx].OutputName
}

func dataEdges(step schema.Step, id, prev string, producers map[string]string) []Edge {
	byFrom := map[string][]string{}
	for _, root := range resolve.Roots(step.Kwargs) {
		from, ok := producers[root]
		if !ok || from == prev {
			continue
		}
		byFrom[from] = append(byFrom[from], "$"+root)
	}
	froms := make([]string, 0, len(byFrom))
	for f := range byFrom {
		froms = append(froms, f)
	}
	sort.Strings(froms)

	edges := make([]Edge, 0, len(froms))
	for _, f := range froms {
		refs := byFrom[f]
		sort.Strings(refs)
		edges = append(edges, Edge{From: f, To: id, Label: strings.Join(refs, ", "), Data: true})
	}
	return edges
}

func overlay(cache map[string]any, i int) *StatusOverlay {
	status, ok := cache[schema.StatusKey(i)].(string)
	if !ok {
		return &StatusOverlay{Status: StatusSkipped}
	}
	o := &StatusOverlay{Status: status}
	if msg, ok := cache[schema.ErrorKey(i)].(string); ok {
		o.Error = msg
	}
	return o
}
