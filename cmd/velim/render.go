package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/cognicore/velim/pkg/velim/analytics"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/report"
)

var (
	colorTeal  = lipgloss.Color("#20B9B4")
	colorSlate = lipgloss.Color("#2C4A54")
	colorGold  = lipgloss.Color("#F4D03F")
)

// printer writes command output. Styling is only applied on a terminal so
// piped output stays plain and stable.
type printer struct {
	w      io.Writer
	styled bool

	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	barStyle   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	p.titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	p.labelStyle = lipgloss.NewStyle().Foreground(colorSlate)
	p.barStyle = lipgloss.NewStyle().Foreground(colorGold)
	return p
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) title(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.titleStyle, fmt.Sprintf(format, args...)))
}

func (p *printer) field(label, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(p.labelStyle, label+":"), value)
}

func list(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func assignments(m map[string]string) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ", ")
}

// report prints one answered query. explain adds the elimination trace.
func (p *printer) report(r report.Report, explain bool) {
	p.title("P(%s | %s)", strings.Join(r.Query, ", "), assignments(r.Evidence))
	p.field("engine", r.Engine)
	p.field("strategy", r.Strategy)
	p.field("barren", list(r.Barren))
	p.field("order", list(r.Order))
	p.field("peak cells", fmt.Sprint(r.PeakCells))

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, o := range r.Outcomes {
		values := make([]string, len(r.Query))
		for i, q := range r.Query {
			values[i] = q + "=" + o.Assignment[q]
		}
		fmt.Fprintf(tw, "  %s\t%.6f\t%s\n", strings.Join(values, " "), o.Probability, p.bar(o.Probability))
	}
	tw.Flush()

	if explain && len(r.Explain) > 0 {
		p.field("steps", "")
		for i, line := range r.Explain {
			fmt.Fprintf(p.w, "  %d. %s\n", i+1, line)
		}
	}
}

func (p *printer) bar(prob float64) string {
	if !p.styled {
		return ""
	}
	return p.barStyle.Render(strings.Repeat("█", int(prob*30+0.5)))
}

func (p *printer) plan(plan *analytics.Plan) {
	p.title("plan %s", plan.Strategy)
	p.field("barren", list(plan.Barren))
	p.field("order", list(plan.Order))
	p.field("induced width", fmt.Sprint(plan.InducedWidth))
	p.field("peak cells", fmt.Sprint(plan.PeakCells))
	p.field("total cells", fmt.Sprint(plan.TotalCells))

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  VARIABLE\tCLIQUE\tCELLS")
	for _, s := range plan.Steps {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", s.Variable, strings.Join(s.Clique, " "), s.Cells)
	}
	tw.Flush()
}

func (p *printer) rankings(rs []analytics.Ranking) {
	p.title("heuristics by peak cells")
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  HEURISTIC\tPEAK\tTOTAL\tWIDTH\tORDER")
	for _, r := range rs {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%s\n",
			r.Heuristic, r.Plan.PeakCells, r.Plan.TotalCells, r.Plan.InducedWidth, list(r.Plan.Order))
	}
	tw.Flush()
}

func (p *printer) network(net *network.Network) {
	p.title("network %s (%d variables)", net.Name(), net.Len())
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  VARIABLE\tDOMAIN\tPARENTS\tCPT CELLS")
	for id, v := range net.Variables() {
		parents := net.Parents(network.ID(id))
		names := make([]string, len(parents))
		for i, pid := range parents {
			names[i] = net.Variable(pid).Name()
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", v.Name(), strings.Join(v.Domain(), ","), list(names), net.Factor(network.ID(id)).Len())
	}
	tw.Flush()
}

func (p *printer) history(rs []report.Report) {
	if len(rs) == 0 {
		fmt.Fprintln(p.w, "no recorded queries")
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNETWORK\tQUERY\tEVIDENCE\tSTRATEGY\tMODE")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Network,
			strings.Join(r.Query, ","), assignments(r.Evidence), r.Strategy, mode(r))
	}
	tw.Flush()
}

// mode renders the most probable outcome of a report.
func mode(r report.Report) string {
	if len(r.Outcomes) == 0 {
		return "-"
	}
	best := r.Outcomes[0]
	for _, o := range r.Outcomes[1:] {
		if o.Probability > best.Probability {
			best = o
		}
	}
	return fmt.Sprintf("%s (%.4f)", assignments(best.Assignment), best.Probability)
}
