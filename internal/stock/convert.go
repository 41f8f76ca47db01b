package stock

import (
	"fmt"
	"strings"
)

// 下载格式。
const (
	RenderTXT = "txt"
	RenderCSV = "csv"
)

// Rendered 下载端点的响应体与元信息。
type Rendered struct {
	Content   string
	MimeType  string
	Extension string
}

// csvLabels 识别的标签及 CSV 列顺序。带标签块约定之外的行被忽略。
var csvLabels = []string{
	"Email", "Password", "Recovery Email", "Phone",
	"Created", "Verified", "2FA Enabled", "Storage Used",
}

// Render 把已分配条目转为请求的下载编码。
// txt 为透传；csv 做“标签块 → 表格”的尽力转换：
// 每遇到新的 Email 标签先落上一条记录，未识别标签丢弃，缺失列留空。
func Render(entries []string, format string) Rendered {
	if format != RenderCSV {
		return Rendered{
			Content:   strings.Join(entries, "\n"),
			MimeType:  "text/plain",
			Extension: RenderTXT,
		}
	}

	rows := []string{strings.Join(csvLabels, ",")}
	current := map[string]string{}
	flush := func() {
		if len(current) == 0 {
			return
		}
		cols := make([]string, len(csvLabels))
		for i, label := range csvLabels {
			cols[i] = fmt.Sprintf("%q", current[label])
		}
		rows = append(rows, strings.Join(cols, ","))
		current = map[string]string{}
	}

	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		for _, label := range csvLabels {
			prefix := "- " + label + ":"
			if !strings.HasPrefix(trimmed, prefix) {
				continue
			}
			if label == "Email" {
				flush()
			}
			current[label] = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			break
		}
	}
	flush()

	return Rendered{
		Content:   strings.Join(rows, "\n"),
		MimeType:  "text/csv",
		Extension: RenderCSV,
	}
}
