package permmatrix

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes the grid as an aligned text table followed by the summary
// footer. Granted cells show [x], pending cells are suffixed with *.
func Render(w io.Writer, v View, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"PERMISSION", "METHOD"}
	for _, r := range v.Roles {
		header = append(header, r.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range v.Rows {
		cols := []string{row.Permission.Label(), row.Permission.Method}
		for _, c := range row.Cells {
			cols = append(cols, cellText(c))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "roles: %d  permissions: %d  unsaved: %d\n", s.Roles, s.Permissions, s.Unsaved)
	return err
}

func cellText(c Cell) string {
	text := "[ ]"
	if c.Granted {
		text = "[x]"
	}
	if c.Pending {
		text += "*"
	}
	return text
}
