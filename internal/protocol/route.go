package protocol

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/profilebus/internal/ir"
)

// DefaultNamespace is the profile protocol's namespace identifier.
const DefaultNamespace = "1CUPPJ9Zjs2qCN2BYgAQzFPga66DYL7uFa"

// Marker requires the opcode cell at Position to equal Opcode.
type Marker struct {
	Position int    `json:"position"`
	Opcode   string `json:"opcode"`
}

// Route is the declarative candidate predicate over one transaction output.
type Route struct {
	OutputIndex    int      `json:"output_index"`
	Markers        []Marker `json:"markers"`
	NamespaceField int      `json:"namespace_field"`
	Namespace      string   `json:"namespace"`
}

// Filter is the subscription document handed to the feed.
type Filter struct {
	Find map[string]any `json:"find"`
}

// DefaultRoute matches an OP_0 OP_RETURN data output at index 0 whose
// string cell 2 carries the profile namespace.
func DefaultRoute() Route {
	return Route{
		OutputIndex: 0,
		Markers: []Marker{
			{Position: 0, Opcode: "OP_0"},
			{Position: 1, Opcode: "OP_RETURN"},
		},
		NamespaceField: 2,
		Namespace:      DefaultNamespace,
	}
}

// Validate rejects routes a feed could not evaluate.
func (r Route) Validate() error {
	var errs []error
	if r.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if r.OutputIndex < 0 {
		errs = append(errs, fmt.Errorf("output_index %d must not be negative", r.OutputIndex))
	}
	if r.NamespaceField < 0 {
		errs = append(errs, fmt.Errorf("namespace_field %d must not be negative", r.NamespaceField))
	}
	seen := make(map[int]bool, len(r.Markers))
	for i, m := range r.Markers {
		if m.Position < 0 {
			errs = append(errs, fmt.Errorf("markers[%d]: position %d must not be negative", i, m.Position))
		}
		if m.Opcode == "" {
			errs = append(errs, fmt.Errorf("markers[%d]: opcode is required", i))
		}
		if m.Position == r.NamespaceField {
			errs = append(errs, fmt.Errorf("markers[%d]: position %d collides with namespace_field", i, m.Position))
		}
		if seen[m.Position] {
			errs = append(errs, fmt.Errorf("markers[%d]: duplicate position %d", i, m.Position))
		}
		seen[m.Position] = true
	}
	return errors.Join(errs...)
}

// Find renders the route as exact-match conditions in the feed's dotted
// query syntax, e.g. {"out.i":0,"out.o1":"OP_RETURN","out.s2":"<ns>"}.
func (r Route) Find() map[string]any {
	find := make(map[string]any, len(r.Markers)+2)
	find["out.i"] = r.OutputIndex
	for _, m := range r.Markers {
		find["out.o"+strconv.Itoa(m.Position)] = m.Opcode
	}
	find["out.s"+strconv.Itoa(r.NamespaceField)] = r.Namespace
	return find
}

// Filter wraps Find in the subscription document shape.
func (r Route) Filter() Filter {
	return Filter{Find: r.Find()}
}

// Match evaluates the route locally against a positional transaction.
// All conditions must hold on the same output.
func (r Route) Match(tx ir.RawTx) bool {
	out, ok := r.Output(tx)
	if !ok {
		return false
	}
	for _, m := range r.Markers {
		if op, ok := out.CellAt("o", m.Position); !ok || op != m.Opcode {
			return false
		}
	}
	ns, ok := out.CellAt("s", r.NamespaceField)
	return ok && ns == r.Namespace
}

// Output returns the output at the route's index, if present.
func (r Route) Output(tx ir.RawTx) (ir.RawOutput, bool) {
	for _, out := range tx.Out {
		if idx, ok := out.Index(); ok && idx == r.OutputIndex {
			return out, true
		}
	}
	return nil, false
}
