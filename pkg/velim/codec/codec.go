// Package codec reads and writes network descriptions.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
)

// Importer parses a network description in one format.
type Importer interface {
	Parse(r io.Reader) (*network.Network, error)
	Format() string
}

// Exporter writes a network in one format.
type Exporter interface {
	Export(net *network.Network, w io.Writer) error
	Format() string
}

// Source is a network description together with its format.
type Source struct {
	Format string
	Text   string
}

// Parse decodes the source with the importer for its format.
func (s Source) Parse() (*network.Network, error) {
	imp, err := ForFormat(s.Format)
	if err != nil {
		return nil, err
	}
	return imp.Parse(strings.NewReader(s.Text))
}

// ForFormat returns the importer for a format name.
func ForFormat(format string) (Importer, error) {
	switch strings.ToLower(format) {
	case "bif":
		return NewBIFCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q: %w", format, internalerr.ErrInvalidInput)
	}
}

// ForPath picks an importer by file extension.
func ForPath(path string) (Importer, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("codec: %s has no extension: %w", path, internalerr.ErrInvalidInput)
	}
	return ForFormat(ext)
}

// LoadFile reads and parses a network file. A network without a name is
// named after the file.
func LoadFile(path string) (*network.Network, Source, error) {
	imp, err := ForPath(path)
	if err != nil {
		return nil, Source{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Source{}, fmt.Errorf("codec: %w", err)
	}
	net, err := imp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, Source{}, fmt.Errorf("%s: %w", path, err)
	}
	if net.Name() == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if net, err = network.New(base, net.Definitions()); err != nil {
			return nil, Source{}, err
		}
	}
	return net, Source{Format: imp.Format(), Text: string(data)}, nil
}
