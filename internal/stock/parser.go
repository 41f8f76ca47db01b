package stock

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// 文件格式标签。
const (
	TagText          = "text"
	TagExcel         = "excel"
	TagExcelFallback = "excel-fallback"
	TagSQL           = "sql"
	TagXML           = "xml"
	TagTextUnknown   = "text-unknown"
	TagBinary        = "binary"
)

// ParseResult 解析产物。Warning 非空表示计数为估算值（降级成功，不算失败）。
type ParseResult struct {
	TotalCount int64    `json:"total_count"`
	Entries    []string `json:"-"`
	FormatTag  string   `json:"format_tag"`
	Warning    string   `json:"warning,omitempty"`
}

// headerAwareExt 按扩展名声明“首行是表头”的格式：解析时丢掉第一条非空行。
// 未知扩展名的文本回退路径不丢表头（只有结构化导出才带表头），
// 该差异是显式配置而非隐含行为。
var headerAwareExt = map[string]bool{
	"csv":  true,
	"txt":  true,
	"json": true,
}

var excelRowTag = regexp.MustCompile(`(?i)<row[^>]*>`)

// Parse 对上传内容做尽力而为的条目计数与抽取。
// 原则：除了文件读不到之外绝不硬失败，宁可降级并携带 Warning。
func Parse(data []byte, filename string) ParseResult {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	switch {
	case ext == "xlsx" || ext == "xls":
		return parseExcel(data)
	case headerAwareExt[ext]:
		return parseLines(data, true)
	case ext == "sql":
		return parseSQL(data)
	case ext == "xml" || ext == "html" || ext == "htm":
		return parseMarkup(data)
	default:
		return parseUnknown(data, filename)
	}
}

// parseLines 按行切分，丢空行；dropHeader 时再丢第一条非空行。
func parseLines(data []byte, dropHeader bool) ParseResult {
	lines := NonBlankLines(string(data))
	if dropHeader && len(lines) > 0 {
		lines = lines[1:]
	}
	tag := TagText
	if !dropHeader {
		tag = TagTextUnknown
	}
	return ParseResult{
		TotalCount: int64(len(lines)),
		Entries:    lines,
		FormatTag:  tag,
	}
}

// parseExcel 优先结构化解析，一行中任意单元格非空即算一条。
// 解析失败回退文本估算。
func parseExcel(data []byte) ParseResult {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return parseExcelFallback(data)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return parseExcelFallback(data)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return parseExcelFallback(data)
	}

	entries := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				entries = append(entries, strings.Join(row, ","))
				break
			}
		}
	}
	return ParseResult{
		TotalCount: int64(len(entries)),
		Entries:    entries,
		FormatTag:  TagExcel,
	}
}

// parseExcelFallback 文本估算：非空行计数；若出现 <row 标记，
// 按标记数减一（表头）估算，且至少为 1。
func parseExcelFallback(data []byte) ParseResult {
	content := string(data)
	estimated := int64(len(NonBlankLines(content)))

	warning := "estimated count: structured spreadsheet parse unavailable"
	if markers := excelRowTag.FindAllString(content, -1); len(markers) > 0 {
		estimated = int64(len(markers) - 1)
		if estimated < 1 {
			estimated = 1
		}
		warning = fmt.Sprintf("estimated count from %d row markers", len(markers))
	}
	return ParseResult{
		TotalCount: estimated,
		FormatTag:  TagExcelFallback,
		Warning:    warning,
	}
}

// parseSQL 统计含 INSERT/VALUES（大小写不敏感）或被圆括号包裹的行。
// 不抽取字面条目。
func parseSQL(data []byte) ParseResult {
	var count int64
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		if strings.Contains(upper, "INSERT") || strings.Contains(upper, "VALUES") ||
			(strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")")) {
			count++
		}
	}
	return ParseResult{TotalCount: count, FormatTag: TagSQL}
}

// parseMarkup 统计同时含开标签和闭合符的非空行。不抽取字面条目。
func parseMarkup(data []byte) ParseResult {
	var count int64
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(line, "<") && (strings.Contains(line, ">") || strings.Contains(line, "/>")) {
			count++
		}
	}
	return ParseResult{TotalCount: count, FormatTag: TagXML}
}

// parseUnknown 未知扩展名：纯 ASCII/换行内容按文本处理（不丢表头），
// 否则视作不可拆分的二进制，整个文件记 1 条。
func parseUnknown(data []byte, filename string) ParseResult {
	if isASCIIText(data) {
		return parseLines(data, false)
	}
	return ParseResult{
		TotalCount: 1,
		Entries:    []string{filename},
		FormatTag:  TagBinary,
		Warning:    "binary file detected, counted as a single item",
	}
}

// isASCIIText 空文件也算文本。
func isASCIIText(data []byte) bool {
	for _, b := range data {
		if b >= 128 {
			return false
		}
	}
	return true
}

// NonBlankLines 按换行切分并剔除空白行，保持原有顺序。
// 这是全仓库统一的“条目数”口径。
func NonBlankLines(content string) []string {
	raw := strings.Split(content, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimRight(line, "\r"))
		}
	}
	return out
}
