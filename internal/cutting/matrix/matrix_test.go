package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

func item(color, size string, qty int) entity.OrderItem {
	return entity.OrderItem{Color: color, Size: size, Quantity: qty}
}

func layout(id string, ratios map[string]float64) entity.Layout {
	l := entity.Layout{ID: id}
	for size, r := range ratios {
		l.Ratios = append(l.Ratios, entity.SizeRatio{LayoutID: id, Size: size, Ratio: r})
	}
	return l
}

func TestBuildDemandSumsDuplicates(t *testing.T) {
	g := BuildDemand([]entity.OrderItem{
		item("red", "S", 10),
		item("red", "S", 4),
		item("red", "M", 2),
	})
	assert.Equal(t, 14.0, g.Get("red", "S"))
	assert.Equal(t, 2.0, g.Get("red", "M"))
	assert.Equal(t, 0.0, g.Get("blue", "S"))
}

func TestBuildSupplyZeroRatioLayout(t *testing.T) {
	layouts := []entity.Layout{
		layout("L1", map[string]float64{"S": 0, "M": 0}),
		layout("L2", nil),
	}
	tasks := []entity.Task{
		{LayoutID: "L1", Color: "red", PlannedLayers: 10},
		{LayoutID: "L2", Color: "blue", PlannedLayers: 3},
		{LayoutID: "missing", Color: "green", PlannedLayers: 3},
	}
	g := BuildSupply(layouts, tasks)
	assert.Empty(t, g)
}

func TestBuildSupplyFractional(t *testing.T) {
	layouts := []entity.Layout{layout("L1", map[string]float64{"S": 0.5, "M": 1.5, "L": 0})}
	tasks := []entity.Task{
		{LayoutID: "L1", Color: "red", PlannedLayers: 3},
		{LayoutID: "L1", Color: "red", PlannedLayers: 1},
	}
	g := BuildSupply(layouts, tasks)
	assert.InDelta(t, 2.0, g.Get("red", "S"), 1e-9)
	assert.InDelta(t, 6.0, g.Get("red", "M"), 1e-9)
	_, hasL := g["red"]["L"]
	assert.False(t, hasL)
}

func TestSortSizes(t *testing.T) {
	nums := []string{"110", "90", "100"}
	SortSizes(nums)
	assert.Equal(t, []string{"90", "100", "110"}, nums)

	mixed := []string{"M", "L", "S", "100"}
	SortSizes(mixed)
	assert.Equal(t, []string{"100", "L", "M", "S"}, mixed)
}

func TestAxesKeepColorOrder(t *testing.T) {
	colors, sizes := Axes([]entity.OrderItem{
		item("white", "M", 1),
		item("black", "S", 1),
		item("white", "S", 1),
	})
	assert.Equal(t, []string{"white", "black"}, colors)
	assert.Equal(t, []string{"M", "S"}, sizes)
}

func TestRedBlueScenario(t *testing.T) {
	items := []entity.OrderItem{
		item("red", "S", 10),
		item("red", "M", 10),
		item("blue", "S", 5),
	}
	layouts := []entity.Layout{layout("L1", map[string]float64{"S": 1, "M": 1})}
	tasks := []entity.Task{{LayoutID: "L1", Color: "red", PlannedLayers: 5}}

	m := Build(items, layouts, tasks)
	assert.Equal(t, Grid{"red": {"S": 5, "M": 5}}, m.Supply)

	redS, ok := m.Cell("red", "S")
	require.True(t, ok)
	assert.Equal(t, ClassDeficit, redS.Class)
	assert.Equal(t, 5.0, redS.Supply)
	assert.Equal(t, 10.0, redS.Demand)
	assert.Equal(t, -5.0, redS.Surplus)

	blueS, ok := m.Cell("blue", "S")
	require.True(t, ok)
	assert.Equal(t, ClassUnconstrained, blueS.Class)
	assert.Equal(t, 0.0, blueS.Supply)
	assert.Equal(t, 5.0, blueS.Demand)

	blueM, ok := m.Cell("blue", "M")
	require.True(t, ok)
	assert.Equal(t, ClassUnconstrained, blueM.Class)

	assert.Equal(t, 2, m.Summary.Deficit)
	assert.Equal(t, 2, m.Summary.Unconstrained)
	assert.Equal(t, 25.0, m.Summary.TotalDemand)
	assert.Equal(t, 10.0, m.Summary.TotalSupply)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassExact, Classify(10, 10, true))
	assert.Equal(t, ClassSurplus, Classify(10, 12.5, true))
	assert.Equal(t, ClassDeficit, Classify(10, 0, true))
	assert.Equal(t, ClassUnconstrained, Classify(0, 7, true))
	assert.Equal(t, ClassUnconstrained, Classify(10, 0, false))
}
