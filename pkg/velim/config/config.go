package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/velim/pkg/velim/internalerr"
)

// runValidate checks Run files. Tags name the yaml keys in messages.
var runValidate = validator.New()

// Run is a batch of queries against one network, read from YAML:
//
//	network: alarm.bif
//	engine: ve
//	pairing: smallest-arity
//	parallelism: 4
//	log: {level: debug}
//	db: velim.db
//	queries:
//	  - name: leaving
//	    query: [Leaving]
//	    order: [Report, Smoke, Alarm, Fire, Tampering]
//	  - name: fire-given-report
//	    query: [Fire]
//	    evidence: {Report: "True"}
//	    heuristic: min-fill
type Run struct {
	Network              string      `yaml:"network" validate:"required"`
	Engine               string      `yaml:"engine" validate:"omitempty,oneof=ve enumerate"`
	Pairing              string      `yaml:"pairing" validate:"omitempty,oneof=smallest-arity smallest-table"`
	Parallelism          int         `yaml:"parallelism" validate:"gte=0,lte=256"`
	DisableBarrenPruning bool        `yaml:"disable_barren_pruning"`
	Log                  Log         `yaml:"log"`
	DB                   string      `yaml:"db"`
	Queries              []QuerySpec `yaml:"queries" validate:"required,min=1,dive"`
}

// Log selects the logger built for a run.
type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// QuerySpec is one query of a run. Order and Heuristic are exclusive; with
// neither the default heuristic applies.
type QuerySpec struct {
	Name      string            `yaml:"name" validate:"required"`
	Query     []string          `yaml:"query" validate:"required,min=1,dive,required"`
	Evidence  map[string]string `yaml:"evidence"`
	Order     []string          `yaml:"order" validate:"excluded_with=Heuristic"`
	Heuristic string            `yaml:"heuristic" validate:"omitempty,oneof=lexicographic min-degree min-fill min-weight"`
}

// LoadRun reads and validates a run file.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRun(data)
}

// ParseRun decodes and validates run YAML. Unknown keys are rejected.
func ParseRun(data []byte) (*Run, error) {
	var run Run
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&run); err != nil {
		return nil, fmt.Errorf("config: %w: %w", internalerr.ErrInvalidConfig, err)
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Validate checks field constraints and that query names are unique.
func (r *Run) Validate() error {
	if err := runValidate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s fails %q: %w", verrs[0].Namespace(), verrs[0].Tag(), internalerr.ErrInvalidConfig)
		}
		return fmt.Errorf("config: %w: %w", internalerr.ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(r.Queries))
	for _, q := range r.Queries {
		if seen[q.Name] {
			return fmt.Errorf("config: query name %q repeated: %w", q.Name, internalerr.ErrInvalidConfig)
		}
		seen[q.Name] = true
	}
	return nil
}
