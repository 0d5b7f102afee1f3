package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/matrix"
)

func exampleFixture(t *testing.T) *Fixture {
	t.Helper()
	fx, err := loadFixture(filepath.Join("..", "..", "configs", "simulate.example.yaml"))
	require.NoError(t, err)
	return fx
}

func TestSimulate_ExampleJSON(t *testing.T) {
	fx := exampleFixture(t)

	var buf bytes.Buffer
	require.NoError(t, simulate(context.Background(), fx, zap.NewNop(), &buf, true))

	var m matrix.Matrices
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, []string{"红", "蓝", "白"}, m.Colors)

	cases := []struct {
		color, size string
		supply      float64
		class       matrix.Class
	}{
		{"红", "M", 50, matrix.ClassDeficit},
		{"红", "L", 25, matrix.ClassDeficit},
		{"红", "S", 40, matrix.ClassExact},
		{"蓝", "M", 30, matrix.ClassExact},
		{"蓝", "L", 30, matrix.ClassExact},
		{"白", "M", 0, matrix.ClassUnconstrained},
	}
	for _, tc := range cases {
		cell, ok := m.Cell(tc.color, tc.size)
		require.True(t, ok, "%s/%s", tc.color, tc.size)
		assert.Equal(t, tc.supply, cell.Supply, "%s/%s", tc.color, tc.size)
		assert.Equal(t, tc.class, cell.Class, "%s/%s", tc.color, tc.size)
	}
	assert.Equal(t, float64(270), m.Summary.TotalDemand)
}

func TestSimulate_TextReport(t *testing.T) {
	fx := exampleFixture(t)

	var buf bytes.Buffer
	require.NoError(t, simulate(context.Background(), fx, zap.NewNop(), &buf, false))

	out := buf.String()
	assert.Contains(t, out, "partial_failure")
	assert.Contains(t, out, "版型B")
	assert.Contains(t, out, "第1轮编辑")
	assert.Contains(t, out, "计划已发布")
	assert.Contains(t, out, "版型A/红 完成 10/25 层")
	assert.Contains(t, out, "50/100")
}

func TestSimulate_UnknownProgressTask(t *testing.T) {
	fx := exampleFixture(t)
	fx.Progress[0].Color = "绿"

	var buf bytes.Buffer
	err := simulate(context.Background(), fx, zap.NewNop(), &buf, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "找不到任务")
}

func TestToSpecs_MatchesByName(t *testing.T) {
	existing := []entity.Layout{{ID: "l-1", Name: "版型A"}}
	specs := toSpecs([]fixtureLayout{
		{Name: "版型A", Colors: []string{"红"}, PlannedLayers: 5},
		{Name: "版型Z", Colors: []string{"蓝"}, PlannedLayers: 5},
		{Colors: []string{"白"}, PlannedLayers: 5},
	}, existing)

	require.Len(t, specs, 3)
	assert.Equal(t, "l-1", specs[0].LayoutID)
	assert.Empty(t, specs[1].LayoutID)
	require.NotNil(t, specs[1].Name)
	assert.Equal(t, "版型Z", *specs[1].Name)
	assert.Nil(t, specs[2].Name)
	assert.Nil(t, specs[2].Note)
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "100", trimFloat(100))
	assert.Equal(t, "0", trimFloat(0))
	assert.Equal(t, "12.5", trimFloat(12.5))
	assert.Equal(t, "0.33", trimFloat(1.0/3))
}
