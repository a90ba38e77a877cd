// Package query turns command-line strings into inference requests.
//
//	velim query --net alarm.bif --query Fire --evidence "Report=True, Smoke=False" --order auto:min-fill
package query

import (
	"fmt"
	"strings"

	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/order"
)

// Parse builds a request from the three flag values. Empty evidence and order
// strings are allowed.
func Parse(queryStr, evidenceStr, orderStr string) (inference.Request, error) {
	names, err := ParseList(queryStr)
	if err != nil {
		return inference.Request{}, err
	}
	if len(names) == 0 {
		return inference.Request{}, fmt.Errorf("query: no query variables: %w", internalerr.ErrInvalidInput)
	}
	evidence, err := ParseEvidence(evidenceStr)
	if err != nil {
		return inference.Request{}, err
	}
	spec, err := ParseOrder(orderStr)
	if err != nil {
		return inference.Request{}, err
	}
	return inference.Request{Query: names, Evidence: evidence, Order: spec}, nil
}

// ParseList splits "A, B" into names. Blank input yields an empty list;
// blank items are rejected.
func ParseList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("query: empty item %d in %q: %w", i+1, s, internalerr.ErrInvalidInput)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseEvidence parses "A=x, B=y". A variable may appear once.
func ParseEvidence(s string) (map[string]string, error) {
	items, err := ParseList(s)
	if err != nil {
		return nil, err
	}
	evidence := make(map[string]string, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("query: evidence %q is not name=value: %w", item, internalerr.ErrInvalidInput)
		}
		if _, dup := evidence[name]; dup {
			return nil, fmt.Errorf("query: evidence for %s given twice: %w", name, internalerr.ErrDuplicate)
		}
		evidence[name] = value
	}
	return evidence, nil
}

// ParseOrder parses an elimination order: "auto" or "" for the default
// heuristic, "auto:<heuristic>" for a named one, otherwise a comma list of
// variable names.
func ParseOrder(s string) (inference.OrderSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "auto" {
		return inference.AutoOrder(order.Lexicographic), nil
	}
	if name, ok := strings.CutPrefix(s, "auto:"); ok {
		kind, err := order.ParseKind(name)
		if err != nil {
			return nil, err
		}
		return inference.AutoOrder(kind), nil
	}
	names, err := ParseList(s)
	if err != nil {
		return nil, err
	}
	return inference.ExplicitOrder(names...), nil
}
