package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/cognicore/velim/pkg/velim/internalerr"
)

func TestParseRunValid(t *testing.T) {
	run, err := ParseRun([]byte(`
network: alarm.bif
queries:
  - name: q
    query: [Fire]
    evidence: {Report: "True"}
    heuristic: min-weight
`))
	if err != nil {
		t.Fatalf("ParseRun: %v", err)
	}
	if run.Network != "alarm.bif" || len(run.Queries) != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if got := run.Queries[0].Evidence["Report"]; got != "True" {
		t.Errorf("evidence Report = %q, want True", got)
	}
}

func TestParseRunRejects(t *testing.T) {
	tests := map[string]string{
		"no network":        "queries: [{name: q, query: [A]}]",
		"no queries":        "network: a.bif",
		"empty query list":  "network: a.bif\nqueries: [{name: q, query: []}]",
		"blank query name":  "network: a.bif\nqueries: [{name: q, query: [\"\"]}]",
		"unnamed query":     "network: a.bif\nqueries: [{query: [A]}]",
		"bad engine":        "network: a.bif\nengine: gibbs\nqueries: [{name: q, query: [A]}]",
		"bad pairing":       "network: a.bif\npairing: biggest\nqueries: [{name: q, query: [A]}]",
		"bad heuristic":     "network: a.bif\nqueries: [{name: q, query: [A], heuristic: fastest}]",
		"order and heur":    "network: a.bif\nqueries: [{name: q, query: [A], order: [B], heuristic: min-fill}]",
		"negative parallel": "network: a.bif\nparallelism: -1\nqueries: [{name: q, query: [A]}]",
		"bad log level":     "network: a.bif\nlog: {level: loud}\nqueries: [{name: q, query: [A]}]",
		"repeated name":     "network: a.bif\nqueries: [{name: q, query: [A]}, {name: q, query: [B]}]",
		"unknown key":       "network: a.bif\ncolour: red\nqueries: [{name: q, query: [A]}]",
		"not yaml":          "network: [",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRun([]byte(src))
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Fatalf("ParseRun(%q) error = %v, want ErrInvalidConfig", src, err)
			}
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	_, err := ParseRun([]byte("network: a.bif\nengine: gibbs\nqueries: [{name: q, query: [A]}]"))
	if err == nil || !strings.Contains(err.Error(), "Engine") {
		t.Errorf("error %v should name the Engine field", err)
	}
}
