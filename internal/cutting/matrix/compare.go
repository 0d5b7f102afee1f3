package matrix

import (
	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// Class 单元格对比分类
type Class string

const (
	ClassDeficit       Class = "deficit"       // 产量不足
	ClassExact         Class = "exact"         // 刚好满足
	ClassSurplus       Class = "surplus"       // 产量富余
	ClassUnconstrained Class = "unconstrained" // 无需求，或该颜色尚未排产
)

// Label 中文标签
func (c Class) Label() string {
	switch c {
	case ClassDeficit:
		return "不足"
	case ClassExact:
		return "满足"
	case ClassSurplus:
		return "富余"
	}
	return "未排产"
}

// Cell 需求/产量对比单元格
type Cell struct {
	Color   string  `json:"color"`
	Size    string  `json:"size"`
	Demand  float64 `json:"demand"`
	Supply  float64 `json:"supply"`
	Surplus float64 `json:"surplus"`
	Class   Class   `json:"class"`
}

// Classify 单元格分类。
// 需求为0，或该颜色在产量矩阵里没有任何行时视为 unconstrained；
// 否则按 surplus = supply - demand 的符号分为 deficit / exact / surplus
func Classify(demand, supply float64, colorPlanned bool) Class {
	if demand == 0 || !colorPlanned {
		return ClassUnconstrained
	}
	switch d := supply - demand; {
	case d < 0:
		return ClassDeficit
	case d == 0:
		return ClassExact
	default:
		return ClassSurplus
	}
}

// Compare 按 colors x sizes 的顺序逐格对比
func Compare(demand, supply Grid, colors, sizes []string) []Cell {
	cells := make([]Cell, 0, len(colors)*len(sizes))
	for _, color := range colors {
		planned := supply.HasColor(color)
		for _, size := range sizes {
			d, s := demand.Get(color, size), supply.Get(color, size)
			cells = append(cells, Cell{
				Color:   color,
				Size:    size,
				Demand:  d,
				Supply:  s,
				Surplus: s - d,
				Class:   Classify(d, s, planned),
			})
		}
	}
	return cells
}

// Summary 分类计数
type Summary struct {
	Deficit       int     `json:"deficit"`
	Exact         int     `json:"exact"`
	Surplus       int     `json:"surplus"`
	Unconstrained int     `json:"unconstrained"`
	TotalDemand   float64 `json:"total_demand"`
	TotalSupply   float64 `json:"total_supply"`
}

// Matrices 计划详情页使用的完整矩阵
type Matrices struct {
	Colors  []string `json:"colors"`
	Sizes   []string `json:"sizes"`
	Demand  Grid     `json:"demand"`
	Supply  Grid     `json:"supply"`
	Cells   []Cell   `json:"cells"`
	Summary Summary  `json:"summary"`
}

// Build 一次算出需求、产量与对比结果
func Build(items []entity.OrderItem, layouts []entity.Layout, tasks []entity.Task) *Matrices {
	colors, sizes := Axes(items)
	demand := BuildDemand(items)
	supply := BuildSupply(layouts, tasks)
	cells := Compare(demand, supply, colors, sizes)

	m := &Matrices{
		Colors: colors,
		Sizes:  sizes,
		Demand: demand,
		Supply: supply,
		Cells:  cells,
	}
	for _, c := range cells {
		m.Summary.TotalDemand += c.Demand
		m.Summary.TotalSupply += c.Supply
		switch c.Class {
		case ClassDeficit:
			m.Summary.Deficit++
		case ClassExact:
			m.Summary.Exact++
		case ClassSurplus:
			m.Summary.Surplus++
		default:
			m.Summary.Unconstrained++
		}
	}
	return m
}

// Cell 查找单元格
func (m *Matrices) Cell(color, size string) (Cell, bool) {
	for _, c := range m.Cells {
		if c.Color == color && c.Size == size {
			return c, true
		}
	}
	return Cell{}, false
}
