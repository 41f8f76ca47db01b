package stock

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSVDropsHeader(t *testing.T) {
	data := []byte("email,password\na@x.com,p1\nb@x.com,p2\n\nc@x.com,p3\n")
	res := Parse(data, "accounts.csv")

	assert.Equal(t, int64(3), res.TotalCount, "表头行不算条目，空行跳过")
	assert.Equal(t, TagText, res.FormatTag)
	assert.Empty(t, res.Warning)
	assert.Equal(t, []string{"a@x.com,p1", "b@x.com,p2", "c@x.com,p3"}, res.Entries)
}

func TestParseTXTDropsHeader(t *testing.T) {
	res := Parse([]byte("ACCOUNTS LIST\nuser1:pass1\nuser2:pass2\n"), "dump.txt")
	assert.Equal(t, int64(2), res.TotalCount)
}

func TestParseHeaderOnlyFile(t *testing.T) {
	// 只有表头的文件解析出 0 条
	res := Parse([]byte("email,password\n"), "empty.csv")
	assert.Equal(t, int64(0), res.TotalCount)
}

func TestParseCRLFLines(t *testing.T) {
	res := Parse([]byte("header\r\na@x.com:p\r\nb@x.com:p\r\n"), "win.txt")
	require.Equal(t, int64(2), res.TotalCount)
	assert.Equal(t, "a@x.com:p", res.Entries[0], "行尾 \\r 必须剔除")
}

func TestParseExcelStructured(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	require.NoError(t, f.SetCellValue(sheet, "A1", "a@x.com"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "pass1"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "b@x.com"))
	// 第三行整行空白，不算条目
	require.NoError(t, f.SetCellValue(sheet, "A3", "  "))
	require.NoError(t, f.SetCellValue(sheet, "A4", "c@x.com"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res := Parse(buf.Bytes(), "stock.xlsx")
	assert.Equal(t, TagExcel, res.FormatTag)
	assert.Equal(t, int64(3), res.TotalCount)
	assert.Empty(t, res.Warning, "结构化解析成功不带告警")
	assert.Equal(t, "a@x.com,pass1", res.Entries[0])
}

func TestParseExcelFallbackRowMarkers(t *testing.T) {
	// 伪 xlsx：打不开就按 <row 标记估算，标记数减一（表头）
	data := []byte("garbage<Row r=\"1\">h</row>\n<row r=\"2\">a</row>\n<row r=\"3\">b</row>")
	res := Parse(data, "broken.xlsx")

	assert.Equal(t, TagExcelFallback, res.FormatTag)
	assert.Equal(t, int64(2), res.TotalCount)
	assert.NotEmpty(t, res.Warning, "估算值必须带告警")
}

func TestParseExcelFallbackFloorsAtOne(t *testing.T) {
	res := Parse([]byte("junk <row>only one</row> junk"), "one.xls")
	assert.Equal(t, int64(1), res.TotalCount, "标记数减一后不足 1 时取 1")
}

func TestParseExcelFallbackNoMarkers(t *testing.T) {
	res := Parse([]byte("line one\nline two\n"), "plain.xlsx")
	assert.Equal(t, TagExcelFallback, res.FormatTag)
	assert.Equal(t, int64(2), res.TotalCount, "无标记时按非空行估算")
	assert.NotEmpty(t, res.Warning)
}

func TestParseSQL(t *testing.T) {
	data := []byte(`-- dump
CREATE TABLE accounts (email text);
INSERT INTO accounts VALUES ('a@x.com');
insert into accounts values ('b@x.com');
('c@x.com', 'p3')
SELECT 1;
`)
	res := Parse(data, "dump.sql")
	assert.Equal(t, TagSQL, res.FormatTag)
	// 两条 INSERT、一条括号包裹行；CREATE/SELECT/注释不算
	assert.Equal(t, int64(3), res.TotalCount)
	assert.Empty(t, res.Entries, "SQL 只计数不抽条目")
}

func TestParseXML(t *testing.T) {
	data := []byte("<accounts>\n<item email=\"a@x.com\"/>\n<item email=\"b@x.com\"/>\nno tags here\n</accounts>\n")
	res := Parse(data, "stock.xml")
	assert.Equal(t, TagXML, res.FormatTag)
	assert.Equal(t, int64(4), res.TotalCount)
}

func TestParseUnknownExtASCII(t *testing.T) {
	// 未知扩展名 + 纯 ASCII：按文本处理且不丢表头
	res := Parse([]byte("a@x.com:p1\nb@x.com:p2\n"), "stock.dat")
	assert.Equal(t, TagTextUnknown, res.FormatTag)
	assert.Equal(t, int64(2), res.TotalCount)
}

func TestParseUnknownExtBinary(t *testing.T) {
	res := Parse([]byte{0x89, 0x50, 0x4e, 0x47, 0xff}, "archive.bin")
	assert.Equal(t, TagBinary, res.FormatTag)
	assert.Equal(t, int64(1), res.TotalCount, "二进制整个文件记 1 条")
	assert.NotEmpty(t, res.Warning)
}

func TestNonBlankLines(t *testing.T) {
	lines := NonBlankLines("a\n\n  \nb\r\n\tc\n")
	assert.Equal(t, []string{"a", "b", "\tc"}, lines)
}
