package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/XM-LEES/cutrix/internal/cutting/matrix"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// 单元格颜色跟随对比分类
var classColors = map[matrix.Class]*color.Color{
	matrix.ClassDeficit:       color.New(color.FgRed),
	matrix.ClassExact:         color.New(color.FgGreen),
	matrix.ClassSurplus:       color.New(color.FgYellow),
	matrix.ClassUnconstrained: color.New(color.FgHiBlack),
}

func printSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	headerColor.Fprintf(w, "▸ %s\n", title)
}

func printReport(w io.Writer, round string, r *reconcile.Report) {
	printSection(w, round)
	fmt.Fprintf(w, "  版型  新建 %d  更新 %d  删除 %d\n", r.LayoutsCreated, r.LayoutsUpdated, r.LayoutsDeleted)
	fmt.Fprintf(w, "  任务  新建 %d  更新 %d  删除 %d  保留 %d\n", r.TasksCreated, r.TasksUpdated, r.TasksDeleted, r.TasksKept)
	if len(r.Warnings) == 0 {
		successColor.Fprintf(w, "  ✓ %s\n", r.Outcome())
		return
	}
	warningColor.Fprintf(w, "  ⚠ %s\n", r.Outcome())
	for _, warn := range r.Warnings {
		warningColor.Fprintf(w, "    - %s\n", warn)
	}
}

// printMatrix 每格显示 产量/需求，按分类着色
func printMatrix(w io.Writer, m *matrix.Matrices) {
	printSection(w, "需求 / 产量对比")

	const cellWidth = 14
	fmt.Fprintf(w, "  %-10s", "颜色\\尺码")
	for _, size := range m.Sizes {
		fmt.Fprintf(w, "%*s", cellWidth, size)
	}
	fmt.Fprintln(w)

	for _, c := range m.Colors {
		fmt.Fprintf(w, "  %-10s", c)
		for _, size := range m.Sizes {
			cell, ok := m.Cell(c, size)
			if !ok {
				fmt.Fprintf(w, "%*s", cellWidth, "-")
				continue
			}
			text := fmt.Sprintf("%s/%s", trimFloat(cell.Supply), trimFloat(cell.Demand))
			classColors[cell.Class].Fprintf(w, "%*s", cellWidth, text)
		}
		fmt.Fprintln(w)
	}

	s := m.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  总需求 %s  总产量 %s\n", trimFloat(s.TotalDemand), trimFloat(s.TotalSupply))
	legend := []string{
		classColors[matrix.ClassDeficit].Sprintf("%s %d", matrix.ClassDeficit.Label(), s.Deficit),
		classColors[matrix.ClassExact].Sprintf("%s %d", matrix.ClassExact.Label(), s.Exact),
		classColors[matrix.ClassSurplus].Sprintf("%s %d", matrix.ClassSurplus.Label(), s.Surplus),
		classColors[matrix.ClassUnconstrained].Sprintf("%s %d", matrix.ClassUnconstrained.Label(), s.Unconstrained),
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(legend, "  "))
}

func trimFloat(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
