// Package trace records, per rendered output, which inputs were touched
// while producing it, and answers the reverse question: given changed
// inputs, which outputs must rebuild.
package trace

import (
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Tracer maintains the forward map (output -> inputs) and a reverse index
// (input -> outputs). The reverse index is kept up to date on every Record
// call rather than recomputed per query, so OutputsFor is a membership
// lookup proportional to the affected outputs, never a rescan of all
// known outputs.
//
// Single-threaded by design: the renderer reports effects sequentially and
// detection runs on the materialized result.
type Tracer struct {
	forward map[string]sets.Set[string]
	reverse map[string]sets.Set[string]
}

// New creates an empty tracer.
func New() *Tracer {
	return &Tracer{
		forward: map[string]sets.Set[string]{},
		reverse: map[string]sets.Set[string]{},
	}
}

// NewFromGraph restores a tracer from a persisted effect graph.
func NewFromGraph(graph map[string][]string) *Tracer {
	t := New()
	for output, inputs := range graph {
		t.Record(output, inputs)
	}
	return t
}

// Record stores the inputs touched while producing output, replacing any
// prior record for the same output and updating the reverse index in the
// same pass.
func (t *Tracer) Record(output string, inputs []string) {
	if old, ok := t.forward[output]; ok {
		for input := range old {
			outs := t.reverse[input]
			outs.Delete(output)
			if outs.Len() == 0 {
				delete(t.reverse, input)
			}
		}
	}

	in := sets.New(inputs...)
	t.forward[output] = in
	for input := range in {
		outs, ok := t.reverse[input]
		if !ok {
			outs = sets.New[string]()
			t.reverse[input] = outs
		}
		outs.Add(output)
	}
}

// Forget drops all records for output, e.g. when its source disappeared.
func (t *Tracer) Forget(output string) {
	old, ok := t.forward[output]
	if !ok {
		return
	}
	for input := range old {
		outs := t.reverse[input]
		outs.Delete(output)
		if outs.Len() == 0 {
			delete(t.reverse, input)
		}
	}
	delete(t.forward, output)
}

// OutputsFor returns every output that recorded any of the changed inputs.
func (t *Tracer) OutputsFor(changed sets.Set[string]) sets.Set[string] {
	affected := sets.New[string]()
	for input := range changed {
		affected.AddAll(t.reverse[input])
	}
	return affected
}

// Inputs returns the recorded inputs for output, or nil when unknown.
func (t *Tracer) Inputs(output string) sets.Set[string] {
	return t.forward[output]
}

// Outputs returns the set of all known outputs.
func (t *Tracer) Outputs() sets.Set[string] {
	out := sets.New[string]()
	for o := range t.forward {
		out.Add(o)
	}
	return out
}

// Graph exports the forward map for persistence, with deterministic input
// ordering.
func (t *Tracer) Graph() map[string][]string {
	out := make(map[string][]string, len(t.forward))
	for output, inputs := range t.forward {
		out[output] = sets.SortedStrings(inputs)
	}
	return out
}
