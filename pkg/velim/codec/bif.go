package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
)

// BIFCodec reads the Bayesian Interchange Format used by the bnlearn
// repository:
//
//	network alarm {
//	}
//	variable Smoke {
//	  type discrete [ 2 ] { True, False };
//	}
//	probability ( Smoke | Fire ) {
//	  (True) 0.9, 0.1;
//	  (False) 0.01, 0.99;
//	}
//
// A probability block may also hold a single "table" entry (child value
// slowest, last parent fastest) and a "default" entry for rows not listed.
// Property lines and C-style comments are ignored.
type BIFCodec struct{}

// NewBIFCodec creates a new BIF codec
func NewBIFCodec() *BIFCodec {
	return &BIFCodec{}
}

// Format returns the codec format identifier
func (c *BIFCodec) Format() string {
	return "bif"
}

// Parse imports a network from BIF.
func (c *BIFCodec) Parse(r io.Reader) (*network.Network, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	p := &bifParser{toks: toks}
	return p.parse()
}

type token struct {
	text string
	line int
}

const punctuation = "{}()[]|,;"

// tokenize splits BIF text into words and punctuation, dropping comments.
func tokenize(r io.Reader) ([]token, error) {
	var toks []token
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	inComment := false
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		var word strings.Builder
		flush := func() {
			if word.Len() > 0 {
				toks = append(toks, token{text: word.String(), line: line})
				word.Reset()
			}
		}
		for i := 0; i < len(text); i++ {
			ch := text[i]
			if inComment {
				if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
					inComment = false
					i++
				}
				continue
			}
			switch {
			case ch == '/' && i+1 < len(text) && text[i+1] == '/':
				i = len(text)
			case ch == '/' && i+1 < len(text) && text[i+1] == '*':
				flush()
				inComment = true
				i++
			case strings.IndexByte(punctuation, ch) >= 0:
				flush()
				toks = append(toks, token{text: string(ch), line: line})
			case ch == ' ' || ch == '\t' || ch == '\r':
				flush()
			default:
				word.WriteByte(ch)
			}
		}
		flush()
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bif: %w", err)
	}
	if inComment {
		return nil, fmt.Errorf("bif: unterminated comment: %w", internalerr.ErrInvalidInput)
	}
	return toks, nil
}

type bifVariable struct {
	name   string
	domain []string
}

type bifTable struct {
	child    string
	parents  []string
	rows     map[string][]float64 // keyed by joined parent values
	order    [][]string           // parent assignments in the order listed
	table    []float64
	fallback []float64
	line     int
}

type bifParser struct {
	toks []token
	pos  int

	name   string
	vars   []bifVariable
	tables map[string]*bifTable
}

func (p *bifParser) parse() (*network.Network, error) {
	p.tables = make(map[string]*bifTable)
	for !p.done() {
		t := p.next()
		var err error
		switch t.text {
		case "network":
			err = p.parseNetwork()
		case "variable":
			err = p.parseVariable()
		case "probability":
			err = p.parseProbability(t.line)
		default:
			err = p.errorf(t, "unexpected %q", t.text)
		}
		if err != nil {
			return nil, err
		}
	}
	return p.build()
}

func (p *bifParser) done() bool { return p.pos >= len(p.toks) }

func (p *bifParser) next() token {
	if p.done() {
		return token{line: p.lastLine()}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *bifParser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos].text
}

func (p *bifParser) lastLine() int {
	if len(p.toks) == 0 {
		return 0
	}
	return p.toks[len(p.toks)-1].line
}

func (p *bifParser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("bif: line %d: %s: %w", t.line, fmt.Sprintf(format, args...), internalerr.ErrInvalidInput)
}

func (p *bifParser) expect(text string) error {
	t := p.next()
	if t.text != text {
		if t.text == "" {
			return p.errorf(t, "expected %q, got end of input", text)
		}
		return p.errorf(t, "expected %q, got %q", text, t.text)
	}
	return nil
}

// word consumes one non-punctuation token.
func (p *bifParser) word() (token, error) {
	t := p.next()
	if t.text == "" || (len(t.text) == 1 && strings.Contains(punctuation, t.text)) {
		return t, p.errorf(t, "expected a name, got %q", t.text)
	}
	return t, nil
}

// skipStatement consumes tokens through the next ";".
func (p *bifParser) skipStatement() error {
	for !p.done() {
		if p.next().text == ";" {
			return nil
		}
	}
	return p.errorf(token{line: p.lastLine()}, "unterminated statement")
}

func (p *bifParser) parseNetwork() error {
	var name []string
	for !p.done() && p.peek() != "{" {
		name = append(name, p.next().text)
	}
	p.name = strings.Join(name, " ")
	if err := p.expect("{"); err != nil {
		return err
	}
	for p.peek() != "}" {
		if p.done() {
			return p.errorf(token{line: p.lastLine()}, "unterminated network block")
		}
		if err := p.skipStatement(); err != nil {
			return err
		}
	}
	return p.expect("}")
}

func (p *bifParser) parseVariable() error {
	nameTok, err := p.word()
	if err != nil {
		return err
	}
	v := bifVariable{name: nameTok.text}
	if err := p.expect("{"); err != nil {
		return err
	}
	for p.peek() != "}" {
		if p.done() {
			return p.errorf(nameTok, "unterminated variable %s", v.name)
		}
		t := p.next()
		if t.text != "type" {
			if err := p.skipStatement(); err != nil {
				return err
			}
			continue
		}
		if kind := p.next(); kind.text != "discrete" {
			return p.errorf(kind, "variable %s: only discrete variables are supported", v.name)
		}
		if err := p.expect("["); err != nil {
			return err
		}
		sizeTok := p.next()
		size, err := strconv.Atoi(sizeTok.text)
		if err != nil {
			return p.errorf(sizeTok, "variable %s: bad size %q", v.name, sizeTok.text)
		}
		if err := p.expect("]"); err != nil {
			return err
		}
		values, err := p.list("{", "}")
		if err != nil {
			return err
		}
		if len(values) != size {
			return p.errorf(sizeTok, "variable %s: declares %d values, lists %d", v.name, size, len(values))
		}
		v.domain = values
		if err := p.expect(";"); err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if v.domain == nil {
		return p.errorf(nameTok, "variable %s has no type", v.name)
	}
	for _, existing := range p.vars {
		if existing.name == v.name {
			return fmt.Errorf("bif: line %d: variable %s: %w", nameTok.line, v.name, internalerr.ErrDuplicate)
		}
	}
	p.vars = append(p.vars, v)
	return nil
}

// list parses open word (, word)* close.
func (p *bifParser) list(open, close string) ([]string, error) {
	if err := p.expect(open); err != nil {
		return nil, err
	}
	var out []string
	for {
		t, err := p.word()
		if err != nil {
			return nil, err
		}
		out = append(out, t.text)
		sep := p.next()
		if sep.text == close {
			return out, nil
		}
		if sep.text != "," {
			return nil, p.errorf(sep, "expected %q or %q, got %q", ",", close, sep.text)
		}
	}
}

// numbers parses number (, number)* ;
func (p *bifParser) numbers() ([]float64, error) {
	var out []float64
	for {
		t := p.next()
		x, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "bad probability %q", t.text)
		}
		out = append(out, x)
		sep := p.next()
		if sep.text == ";" {
			return out, nil
		}
		if sep.text != "," {
			return nil, p.errorf(sep, "expected %q or %q, got %q", ",", ";", sep.text)
		}
	}
}

func (p *bifParser) parseProbability(line int) error {
	if err := p.expect("("); err != nil {
		return err
	}
	childTok, err := p.word()
	if err != nil {
		return err
	}
	tbl := &bifTable{child: childTok.text, rows: make(map[string][]float64), line: line}
	sep := p.next()
	if sep.text == "|" {
		for {
			t, err := p.word()
			if err != nil {
				return err
			}
			tbl.parents = append(tbl.parents, t.text)
			sep = p.next()
			if sep.text != "," {
				break
			}
		}
	}
	if sep.text != ")" {
		return p.errorf(sep, "expected %q, got %q", ")", sep.text)
	}
	if _, dup := p.tables[tbl.child]; dup {
		return fmt.Errorf("bif: line %d: probability for %s: %w", line, tbl.child, internalerr.ErrDuplicate)
	}

	if err := p.expect("{"); err != nil {
		return err
	}
	for p.peek() != "}" {
		if p.done() {
			return p.errorf(childTok, "unterminated probability block for %s", tbl.child)
		}
		switch p.peek() {
		case "(":
			given, err := p.list("(", ")")
			if err != nil {
				return err
			}
			probs, err := p.numbers()
			if err != nil {
				return err
			}
			key := strings.Join(given, "\x00")
			if _, dup := tbl.rows[key]; dup {
				return fmt.Errorf("bif: line %d: %s given %v listed twice: %w", line, tbl.child, given, internalerr.ErrDuplicate)
			}
			tbl.rows[key] = probs
			tbl.order = append(tbl.order, given)
		case "table":
			p.next()
			if tbl.table, err = p.numbers(); err != nil {
				return err
			}
		case "default":
			p.next()
			if tbl.fallback, err = p.numbers(); err != nil {
				return err
			}
		default:
			if err := p.skipStatement(); err != nil {
				return err
			}
		}
	}
	p.tables[tbl.child] = tbl
	return p.expect("}")
}

// build turns the parsed blocks into network definitions.
func (p *bifParser) build() (*network.Network, error) {
	domains := make(map[string][]string, len(p.vars))
	for _, v := range p.vars {
		domains[v.name] = v.domain
	}
	for child, tbl := range p.tables {
		if _, ok := domains[child]; !ok {
			return nil, fmt.Errorf("bif: line %d: probability for undeclared variable %s: %w", tbl.line, child, internalerr.ErrInvalidReference)
		}
	}

	defs := make([]network.Definition, 0, len(p.vars))
	for _, v := range p.vars {
		tbl, ok := p.tables[v.name]
		if !ok {
			return nil, fmt.Errorf("bif: variable %s has no probability block: %w", v.name, internalerr.ErrStructural)
		}
		rows, err := tbl.expand(domains)
		if err != nil {
			return nil, err
		}
		defs = append(defs, network.Definition{
			Name:    v.name,
			Domain:  v.domain,
			Parents: tbl.parents,
			Rows:    rows,
		})
	}
	return network.New(p.name, defs)
}

// expand produces one row per parent assignment, in declared parent order
// with the last parent varying fastest, from whichever entries the block used.
func (t *bifTable) expand(domains map[string][]string) ([]network.Row, error) {
	sizes := make([]int, len(t.parents))
	nrows := 1
	for i, parent := range t.parents {
		d, ok := domains[parent]
		if !ok {
			return nil, fmt.Errorf("bif: line %d: parent %s of %s: %w", t.line, parent, t.child, internalerr.ErrInvalidReference)
		}
		sizes[i] = len(d)
		nrows *= len(d)
	}
	nvals := len(domains[t.child])

	if t.table != nil {
		if len(t.rows) > 0 {
			return nil, fmt.Errorf("bif: line %d: %s mixes table and rows: %w", t.line, t.child, internalerr.ErrInvalidInput)
		}
		if len(t.table) != nrows*nvals {
			return nil, fmt.Errorf("bif: line %d: table for %s has %d entries, want %d: %w", t.line, t.child, len(t.table), nrows*nvals, internalerr.ErrStructural)
		}
	}

	rows := make([]network.Row, 0, nrows)
	digits := make([]int, len(t.parents))
	for r := 0; r < nrows; r++ {
		given := make([]string, len(t.parents))
		for i, parent := range t.parents {
			given[i] = domains[parent][digits[i]]
		}

		// A missing row is left for network.New to report.
		var probs []float64
		if t.table != nil {
			probs = make([]float64, nvals)
			for k := range probs {
				probs[k] = t.table[k*nrows+r]
			}
		} else if listed, ok := t.rows[strings.Join(given, "\x00")]; ok {
			probs = listed
		} else {
			probs = t.fallback
		}
		if probs != nil {
			rows = append(rows, network.Row{Given: given, Probs: probs})
		}

		for i := len(digits) - 1; i >= 0; i-- {
			digits[i]++
			if digits[i] < sizes[i] {
				break
			}
			digits[i] = 0
		}
	}

	// Rows naming values outside the parents' domains never match above.
	for _, g := range t.order {
		if len(g) != len(t.parents) {
			return nil, fmt.Errorf("bif: line %d: %s row %v needs %d parent values: %w", t.line, t.child, g, len(t.parents), internalerr.ErrStructural)
		}
	}
	if t.table == nil && t.fallback == nil && len(t.order) != nrows {
		return nil, fmt.Errorf("bif: line %d: %s lists %d rows, want %d: %w", t.line, t.child, len(t.order), nrows, internalerr.ErrStructural)
	}
	return rows, nil
}
