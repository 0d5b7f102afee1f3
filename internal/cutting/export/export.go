// Package export 需求/产量对比表导出（xlsx、csv）与订单明细导入。
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/matrix"
)

// Encoding CSV 文本编码
type Encoding string

const (
	UTF8 Encoding = "utf-8"
	GBK  Encoding = "gbk" // Excel 中文版直接打开不乱码
)

// ParseEncoding 未知编码按 UTF-8 处理
func ParseEncoding(s string) Encoding {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gbk", "gb2312", "gb18030":
		return GBK
	}
	return UTF8
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// cellText 对比单元格文本：产量 / 需求
func cellText(c matrix.Cell) string {
	return formatQty(c.Supply) + " / " + formatQty(c.Demand)
}

// ============================================================
// xlsx
// ============================================================

var classFill = map[matrix.Class]string{
	matrix.ClassDeficit: "#FFCCC7",
	matrix.ClassExact:   "#D9F7BE",
	matrix.ClassSurplus: "#BAE0FF",
}

// BuildXLSX 生成三个工作表：对比、需求、产量
func BuildXLSX(m *matrix.Matrices, title string) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "对比"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	classStyle := make(map[matrix.Class]int, len(classFill))
	for class, color := range classFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return nil, err
		}
		classStyle[class] = id
	}

	f.SetCellValue(sheet, "A1", title)
	writeHeader(f, sheet, 2, m.Sizes, boldStyle)

	row := 3
	for ci, color := range m.Colors {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), color)
		for si := range m.Sizes {
			c := m.Cells[ci*len(m.Sizes)+si]
			col, _ := excelize.ColumnNumberToName(si + 2)
			cell := fmt.Sprintf("%s%d", col, row)
			f.SetCellValue(sheet, cell, cellText(c))
			if style, ok := classStyle[c.Class]; ok {
				f.SetCellStyle(sheet, cell, cell, style)
			}
		}
		row++
	}

	summaryRow := row + 1
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("需求合计: %s", formatQty(m.Summary.TotalDemand)))
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("计划产量: %s", formatQty(m.Summary.TotalSupply)))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summaryRow), fmt.Sprintf("不足: %d", m.Summary.Deficit))

	if err := writeGrid(f, "需求", m.Demand, m.Colors, m.Sizes, boldStyle); err != nil {
		return nil, err
	}
	if err := writeGrid(f, "产量", m.Supply, m.Colors, m.Sizes, boldStyle); err != nil {
		return nil, err
	}

	f.SetColWidth(sheet, "A", "A", 14)
	if len(m.Sizes) > 0 {
		last, _ := excelize.ColumnNumberToName(len(m.Sizes) + 1)
		f.SetColWidth(sheet, "B", last, 14)
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, row int, sizes []string, style int) {
	headers := append([]string{"颜色"}, sizes...)
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func writeGrid(f *excelize.File, sheet string, g matrix.Grid, colors, sizes []string, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeader(f, sheet, 1, sizes, headerStyle)
	for ri, color := range colors {
		row := ri + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), color)
		for si, size := range sizes {
			col, _ := excelize.ColumnNumberToName(si + 2)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), g.Get(color, size))
		}
	}
	return nil
}

// WriteXLSX 写出 xlsx
func WriteXLSX(w io.Writer, m *matrix.Matrices, title string) error {
	f, err := BuildXLSX(m, title)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ============================================================
// csv
// ============================================================

// WriteCSV 写出对比表：颜色, 尺码..., 每格为 "产量 / 需求"
func WriteCSV(w io.Writer, m *matrix.Matrices, enc Encoding) error {
	var out io.Writer = w
	var closer io.Closer
	if enc == GBK {
		tw := transform.NewWriter(w, simplifiedchinese.GBK.NewEncoder())
		out, closer = tw, tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(append([]string{"颜色"}, m.Sizes...)); err != nil {
		return err
	}
	for ci, color := range m.Colors {
		record := make([]string, 0, len(m.Sizes)+1)
		record = append(record, color)
		for si := range m.Sizes {
			record = append(record, cellText(m.Cells[ci*len(m.Sizes)+si]))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// ============================================================
// 订单明细导入
// ============================================================

// ErrBadItems 明细文件格式错误
var ErrBadItems = errors.New("订单明细格式错误")

// ReadItemsCSV 读取 "颜色,尺码,数量" 三列 CSV，首行为表头时跳过
func ReadItemsCSV(r io.Reader, enc Encoding) ([]entity.OrderItem, error) {
	if enc == GBK {
		r = transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadItems, err)
	}
	return parseItemRows(records)
}

// ReadItemsXLSX 读取第一个工作表的 "颜色,尺码,数量" 三列
func ReadItemsXLSX(r io.Reader) ([]entity.OrderItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadItems, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadItems, err)
	}
	return parseItemRows(rows)
}

func parseItemRows(rows [][]string) ([]entity.OrderItem, error) {
	var items []entity.OrderItem
	for i, row := range rows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("%w: 第%d行列数不足", ErrBadItems, i+1)
		}
		color, size := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		qty, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			if i == 0 {
				continue // 表头
			}
			return nil, fmt.Errorf("%w: 第%d行数量无效", ErrBadItems, i+1)
		}
		items = append(items, entity.OrderItem{Color: color, Size: size, Quantity: qty})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 没有明细行", ErrBadItems)
	}
	return items, nil
}
