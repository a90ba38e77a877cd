package factor

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Brief returns a short label such as "f7(Alarm, Fire)".
func (f *Factor) Brief() string {
	return fmt.Sprintf("f%d(%s)", f.id, strings.Join(f.Names(), ", "))
}

// String renders the factor as a table with one row per cell.
func (f *Factor) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\n", f.Brief())
	header := append(f.Names(), "prob")
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range f.Rows() {
		cells := append(row.Assignment, strconv.FormatFloat(row.Value, 'g', 6, 64))
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return b.String()
}
