package reconcile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// LayoutSpec 期望的版型描述。LayoutID 为空表示新建，否则更新已有版型
type LayoutSpec struct {
	LayoutID      string             `json:"layout_id,omitempty"`
	Name          *string            `json:"layout_name,omitempty"`
	Note          *string            `json:"note,omitempty"`
	Colors        []string           `json:"colors"`
	PlannedLayers int                `json:"planned_layers"`
	Ratios        map[string]float64 `json:"ratios"`
}

// 校验错误
var (
	ErrNoColors        = errors.New("颜色不能为空")
	ErrBlankColor      = errors.New("颜色名称不能为空白")
	ErrDuplicateColor  = errors.New("同一版型内颜色重复")
	ErrNoLayers        = errors.New("计划层数必须大于0")
	ErrBlankSize       = errors.New("尺码名称不能为空白")
	ErrInvalidRatio    = errors.New("尺码比例无效（非数字或超出范围）")
	ErrNegativeRatio   = errors.New("尺码比例不能为负数")
	ErrRatioSum        = errors.New("尺码比例合计必须大于0")
	ErrUnknownLayout   = errors.New("版型不存在或不属于该计划")
	ErrDuplicateLayout = errors.New("同一版型被重复提交")
)

// Validate 单个版型描述的结构校验
func (s *LayoutSpec) Validate() error {
	if len(s.Colors) == 0 {
		return ErrNoColors
	}
	seen := make(map[string]bool, len(s.Colors))
	for _, c := range s.Colors {
		c = strings.TrimSpace(c)
		if c == "" {
			return ErrBlankColor
		}
		if seen[c] {
			return fmt.Errorf("%w: %s", ErrDuplicateColor, c)
		}
		seen[c] = true
	}
	if s.PlannedLayers <= 0 {
		return ErrNoLayers
	}
	for size, r := range s.Ratios {
		if strings.TrimSpace(size) == "" {
			return ErrBlankSize
		}
		if math.IsNaN(r) || math.IsInf(r, 0) || r > MaxRatio {
			return fmt.Errorf("%w: %s=%g", ErrInvalidRatio, size, r)
		}
		if r < 0 {
			return fmt.Errorf("%w: %s=%g", ErrNegativeRatio, size, r)
		}
	}
	// 合计按实际保存的比例计算
	var sum float64
	for size, r := range s.PositiveRatios() {
		if r > MaxRatio {
			return fmt.Errorf("%w: %s=%g", ErrInvalidRatio, size, r)
		}
		sum += r
	}
	if sum <= 0 {
		return ErrRatioSum
	}
	return nil
}

// 比例保存精度与上限（numeric(10,4)）
const (
	RatioScale = 1e4
	MaxRatio   = 999999.9999
)

// RoundRatio 按保存精度取整，保证比较与落库后的值一致
func RoundRatio(r float64) float64 {
	return math.Round(r*RatioScale) / RatioScale
}

// PositiveRatios 只保留按保存精度取整后大于0的比例，0 与缺省等价。
// 去掉首尾空白后同名的尺码合并
func (s *LayoutSpec) PositiveRatios() map[string]float64 {
	sums := make(map[string]float64, len(s.Ratios))
	for size, r := range s.Ratios {
		size = strings.TrimSpace(size)
		if size == "" || math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			continue
		}
		sums[size] += r
	}
	m := make(map[string]float64, len(sums))
	for size, r := range sums {
		if r = RoundRatio(r); r > 0 {
			m[size] = r
		}
	}
	return m
}

// NormalizedColors 去掉首尾空白后的颜色列表（保持顺序）
func (s *LayoutSpec) NormalizedColors() []string {
	out := make([]string, len(s.Colors))
	for i, c := range s.Colors {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func sameRatios(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func sortedSizes(m map[string]float64) []string {
	sizes := make([]string, 0, len(m))
	for s := range m {
		sizes = append(sizes, s)
	}
	sort.Strings(sizes)
	return sizes
}
