package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/matrix"
)

func sample() *matrix.Matrices {
	items := []entity.OrderItem{
		{Color: "红", Size: "S", Quantity: 10},
		{Color: "红", Size: "M", Quantity: 10},
		{Color: "蓝", Size: "S", Quantity: 5},
	}
	layouts := []entity.Layout{{
		ID:     "L1",
		Ratios: []entity.SizeRatio{{Size: "S", Ratio: 1}, {Size: "M", Ratio: 1}},
	}}
	tasks := []entity.Task{{LayoutID: "L1", Color: "红", PlannedLayers: 5}}
	return matrix.Build(items, layouts, tasks)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(), UTF8))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "颜色,M,S", lines[0])
	assert.Equal(t, "红,5 / 10,5 / 10", lines[1])
	assert.Equal(t, "蓝,0 / 0,0 / 5", lines[2])
}

func TestWriteCSVGBK(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(), GBK))

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), "颜色,M,S"))
	assert.NotEqual(t, buf.String(), string(decoded))
}

func TestBuildXLSX(t *testing.T) {
	f, err := BuildXLSX(sample(), "PO-001")
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("对比", "B3")
	require.NoError(t, err)
	assert.Equal(t, "5 / 10", v)

	v, err = f.GetCellValue("需求", "C3")
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	_, err = excelize.OpenReader(&buf)
	require.NoError(t, err)
}

func TestReadItemsCSV(t *testing.T) {
	src := "颜色,尺码,数量\n红,S,10\n红,M, 12\n\n蓝,S,5\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(src)
	require.NoError(t, err)

	items, err := ReadItemsCSV(strings.NewReader(gbk), GBK)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, entity.OrderItem{Color: "红", Size: "M", Quantity: 12}, items[1])

	_, err = ReadItemsCSV(strings.NewReader("颜色,尺码,数量\n红,S,abc\n"), UTF8)
	assert.ErrorIs(t, err, ErrBadItems)

	_, err = ReadItemsCSV(strings.NewReader("颜色,尺码,数量\n"), UTF8)
	assert.ErrorIs(t, err, ErrBadItems)
}

func TestParseEncoding(t *testing.T) {
	assert.Equal(t, GBK, ParseEncoding("GB18030"))
	assert.Equal(t, UTF8, ParseEncoding(""))
}
