package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
)

// YAMLCodec reads and writes networks as YAML:
//
//	name: alarm
//	variables:
//	  - name: Smoke
//	    domain: ["True", "False"]
//	    parents: [Fire]
//	    rows:
//	      - {given: ["True"], probs: [0.9, 0.1]}
//	      - {given: ["False"], probs: [0.01, 0.99]}
//
// Root variables may use probs directly instead of rows.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

type yamlNetwork struct {
	Name      string         `yaml:"name"`
	Variables []yamlVariable `yaml:"variables"`
}

type yamlVariable struct {
	Name    string    `yaml:"name"`
	Domain  []string  `yaml:"domain,flow"`
	Parents []string  `yaml:"parents,omitempty,flow"`
	Probs   []float64 `yaml:"probs,omitempty,flow"`
	Rows    []yamlRow `yaml:"rows,omitempty"`
}

type yamlRow struct {
	Given []string  `yaml:"given,flow"`
	Probs []float64 `yaml:"probs,flow"`
}

// Parse imports a network from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*network.Network, error) {
	var yn yamlNetwork
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&yn); err != nil {
		return nil, fmt.Errorf("yaml: %w: %w", internalerr.ErrInvalidInput, err)
	}

	defs := make([]network.Definition, 0, len(yn.Variables))
	for _, yv := range yn.Variables {
		def := network.Definition{
			Name:    yv.Name,
			Domain:  yv.Domain,
			Parents: yv.Parents,
		}
		switch {
		case len(yv.Probs) > 0 && len(yv.Rows) > 0:
			return nil, fmt.Errorf("yaml: variable %s has both probs and rows: %w", yv.Name, internalerr.ErrInvalidInput)
		case len(yv.Probs) > 0:
			def.Rows = []network.Row{{Probs: yv.Probs}}
		default:
			for _, row := range yv.Rows {
				def.Rows = append(def.Rows, network.Row{Given: row.Given, Probs: row.Probs})
			}
		}
		defs = append(defs, def)
	}
	return network.New(yn.Name, defs)
}

// Export writes net as YAML with domains and rows in canonical order.
func (c *YAMLCodec) Export(net *network.Network, w io.Writer) error {
	yn := yamlNetwork{Name: net.Name()}
	for _, def := range net.Definitions() {
		yv := yamlVariable{Name: def.Name, Domain: def.Domain, Parents: def.Parents}
		if len(def.Parents) == 0 && len(def.Rows) == 1 {
			yv.Probs = def.Rows[0].Probs
		} else {
			for _, row := range def.Rows {
				yv.Rows = append(yv.Rows, yamlRow{Given: row.Given, Probs: row.Probs})
			}
		}
		yn.Variables = append(yn.Variables, yv)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yn); err != nil {
		return fmt.Errorf("yaml: %w", err)
	}
	return enc.Close()
}
