// Package view renders svcenv's read-only commands (show, stores, services)
// for the terminal.
package view

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// InstanceView is one configured instance as shown by `svcenv show`.
type InstanceView struct {
	Name      string
	ServiceID string
	Image     string
	// Data is nil when the instance has no saved settings yet.
	Data map[string]string
	// Env is the rendered environment the instance would inject.
	Env map[string]string
}

// VariantInfo describes one service variant for `svcenv services`.
type VariantInfo struct {
	ID           string
	Description  string
	DefaultImage string
	Tools        []string
}

// RenderShow prints the saved connection data of every instance in store.
func RenderShow(w io.Writer, store string, instances []InstanceView) error {
	st := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", st.title.Render("Store"), store)
	if len(instances) == 0 {
		fmt.Fprintf(&b, "\n%s\n", st.muted.Render("No services configured."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, inst := range instances {
		fmt.Fprintf(&b, "\n%s %s\n", st.name.Render(inst.Name), st.muted.Render(fmt.Sprintf("(%s, %s)", inst.ServiceID, inst.Image)))
		if inst.Data == nil {
			fmt.Fprintf(&b, "  %s\n", st.missing.Render("not run yet"))
			continue
		}
		writePairs(&b, st, inst.Data)
		if len(inst.Env) > 0 {
			fmt.Fprintf(&b, "  %s\n", st.muted.Render("environment:"))
			writePairs(&b, st, inst.Env)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderStores prints the known stores, marking current.
func RenderStores(w io.Writer, stores []string, current string) error {
	st := newStyles(w)
	var b strings.Builder

	if len(stores) == 0 {
		fmt.Fprintln(&b, st.muted.Render("No stores yet."))
	}
	for _, s := range stores {
		if s == current {
			fmt.Fprintf(&b, "* %s\n", st.current.Render(s))
			continue
		}
		fmt.Fprintf(&b, "  %s\n", s)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderServices prints the variant catalog as a table.
func RenderServices(w io.Writer, variants []VariantInfo) error {
	st := newStyles(w)
	rows := [][]string{{"SERVICE", "IMAGE", "TOOLS", "DESCRIPTION"}}
	for _, v := range variants {
		tools := strings.Join(v.Tools, ", ")
		if tools == "" {
			tools = "-"
		}
		rows = append(rows, []string{v.ID, v.DefaultImage, tools, v.Description})
	}

	widths := columnWidths(rows)
	var b strings.Builder
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			text := cell
			if i == 0 {
				text = st.header.Render(cell)
			}
			if j < len(row)-1 {
				text += strings.Repeat(" ", widths[j]-runewidth.StringWidth(cell))
			}
			cells[j] = text
		}
		fmt.Fprintln(&b, strings.Join(cells, "  "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writePairs(b *strings.Builder, st styles, pairs map[string]string) {
	keys := make([]string, 0, len(pairs))
	width := 0
	for k := range pairs {
		keys = append(keys, k)
		if kw := runewidth.StringWidth(k); kw > width {
			width = kw
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s  %s\n", st.key.Render(padRight(k, width)), pairs[k])
	}
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for j, cell := range row {
			if j >= len(widths) {
				widths = append(widths, 0)
			}
			if cw := runewidth.StringWidth(cell); cw > widths[j] {
				widths[j] = cw
			}
		}
	}
	return widths
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
