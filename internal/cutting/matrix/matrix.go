// Package matrix 需求/产量矩阵计算。
//
// 需求来自订单明细，产量来自版型比例 x 任务计划层数。本包只做纯计算，不读写存储，
// 也不做取整，显示格式由调用方决定。
package matrix

import (
	"sort"
	"strconv"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// Grid 颜色 -> 尺码 -> 数量
type Grid map[string]map[string]float64

// Add 累加一个单元格
func (g Grid) Add(color, size string, qty float64) {
	row, ok := g[color]
	if !ok {
		row = make(map[string]float64)
		g[color] = row
	}
	row[size] += qty
}

// Get 读取单元格，不存在返回0
func (g Grid) Get(color, size string) float64 {
	return g[color][size]
}

// HasColor 该颜色是否有任何数据行
func (g Grid) HasColor(color string) bool {
	_, ok := g[color]
	return ok
}

// ColorTotal 某颜色所有尺码合计
func (g Grid) ColorTotal(color string) float64 {
	var sum float64
	for _, q := range g[color] {
		sum += q
	}
	return sum
}

// BuildDemand 订单明细 -> 需求矩阵。同一 (颜色, 尺码) 重复出现时数量累加
func BuildDemand(items []entity.OrderItem) Grid {
	g := make(Grid)
	for _, it := range items {
		g.Add(it.Color, it.Size, float64(it.Quantity))
	}
	return g
}

// BuildSupply 版型 + 任务 -> 产量矩阵
// 每个任务按其版型的每个正比例尺码贡献 planned_layers * ratio；比例合计 <=0 的版型不贡献
func BuildSupply(layouts []entity.Layout, tasks []entity.Task) Grid {
	byID := make(map[string]*entity.Layout, len(layouts))
	for i := range layouts {
		byID[layouts[i].ID] = &layouts[i]
	}

	g := make(Grid)
	for _, t := range tasks {
		l, ok := byID[t.LayoutID]
		if !ok || l.RatioSum() <= 0 || t.PlannedLayers <= 0 {
			continue
		}
		for size, ratio := range l.RatioMap() {
			g.Add(t.Color, size, float64(t.PlannedLayers)*ratio)
		}
	}
	return g
}

// SupplyFromLayouts 从带任务的版型构建产量（版型的 Tasks 已预加载）
func SupplyFromLayouts(layouts []entity.Layout) Grid {
	var tasks []entity.Task
	for _, l := range layouts {
		tasks = append(tasks, l.Tasks...)
	}
	return BuildSupply(layouts, tasks)
}

// Axes 显示用的颜色和尺码。颜色保持订单明细中首次出现的顺序，尺码排序见 SortSizes
func Axes(items []entity.OrderItem) (colors, sizes []string) {
	seenColor := make(map[string]bool)
	seenSize := make(map[string]bool)
	for _, it := range items {
		if !seenColor[it.Color] {
			seenColor[it.Color] = true
			colors = append(colors, it.Color)
		}
		if !seenSize[it.Size] {
			seenSize[it.Size] = true
			sizes = append(sizes, it.Size)
		}
	}
	SortSizes(sizes)
	return colors, sizes
}

// SortSizes 全部尺码都是整数时按数值升序，否则按字典序
func SortSizes(sizes []string) {
	nums := make(map[string]int, len(sizes))
	numeric := true
	for _, s := range sizes {
		n, err := strconv.Atoi(s)
		if err != nil {
			numeric = false
			break
		}
		nums[s] = n
	}
	if numeric {
		sort.SliceStable(sizes, func(i, j int) bool { return nums[sizes[i]] < nums[sizes[j]] })
		return
	}
	sort.Strings(sizes)
}
