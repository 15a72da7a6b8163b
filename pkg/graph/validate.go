package graph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

var (
	validateOnce sync.Once
	structValid  *validator.Validate
)

// structValidator returns the shared validator. Field names in errors are
// taken from the json tags so messages match the wire format.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structValid = v
	})
	return structValid
}

// Validate checks g before it is sent to the ELK server. It returns an
// INVALID_GRAPH error listing every problem found, or nil.
func Validate(g *Graph) error {
	if g == nil {
		return elkerrors.New(elkerrors.ErrCodeInvalidGraph, "graph is nil")
	}
	problems := Problems(g)
	if len(problems) == 0 {
		return nil
	}
	id := g.ID
	if id == "" {
		id = "<unnamed>"
	}
	return elkerrors.New(elkerrors.ErrCodeInvalidGraph, "invalid graph %q: %s", id, strings.Join(problems, "; "))
}

// Problems returns a human-readable description of every validation failure
// in g. An empty result means the graph is valid.
func Problems(g *Graph) []string {
	var problems []string

	if err := structValidator().Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, describeFieldError(fe))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	problems = append(problems, checkIdentifiers(g)...)
	return problems
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "min":
		return fmt.Sprintf("%s: must contain at least %s entry", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s: must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %q check", field, fe.Tag())
	}
}

// checkIdentifiers enforces graph-wide id rules: ids are unique across all
// element kinds, well-formed, and edge endpoints resolve to nodes or ports.
func checkIdentifiers(g *Graph) []string {
	var problems []string
	seen := map[string]string{}
	endpoints := map[string]bool{}

	claim := func(kind, id string) {
		if id == "" {
			return
		}
		if err := elkerrors.ValidateElementID(id); err != nil {
			problems = append(problems, fmt.Sprintf("%s %q: %s", kind, id, elkerrors.UserMessage(err)))
			return
		}
		if prev, dup := seen[id]; dup {
			problems = append(problems, fmt.Sprintf("duplicate id %q (%s and %s)", id, prev, kind))
			return
		}
		seen[id] = kind
	}

	claim("graph", g.ID)
	var edges []*Edge
	Walk(g, Visitor{
		Node: func(n *Node, _ string) {
			claim("node", n.ID)
			endpoints[n.ID] = true
		},
		Port: func(p *Port, _ string) {
			claim("port", p.ID)
			endpoints[p.ID] = true
		},
		Edge: func(e *Edge, _ string) {
			claim("edge", e.ID)
			edges = append(edges, e)
		},
		Label: func(l *Label, _ string) { claim("label", l.ID) },
	})

	for _, e := range edges {
		for _, s := range e.Sources {
			if s != "" && !endpoints[s] {
				problems = append(problems, fmt.Sprintf("edge %q: unknown source %q", e.ID, s))
			}
		}
		for _, t := range e.Targets {
			if t != "" && !endpoints[t] {
				problems = append(problems, fmt.Sprintf("edge %q: unknown target %q", e.ID, t))
			}
		}
	}
	return problems
}
