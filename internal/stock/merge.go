package stock

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 手工录入支持的数据格式。
const (
	FormatAccounts  = "accounts"
	FormatGmail     = "gmail"
	FormatProfiles  = "profiles"
	FormatInstagram = "instagram"
	FormatFacebook  = "facebook"
	FormatTwitter   = "twitter"
	FormatYoutube   = "youtube"
	FormatLinkedin  = "linkedin"
	FormatTiktok    = "tiktok"
	FormatJSON      = "json"
	FormatCSV       = "csv"
	FormatXMLEntry  = "xml"
	FormatSQLEntry  = "sql"
	FormatCustom    = "custom"
)

// MergeResult 合并产物。NewTotal 从合并后内容重算，绝不做 existing+added 算术。
type MergeResult struct {
	CombinedContent string
	NewTotal        int64
	Added           int64
}

// Merge 把操作员手工输入的条目并入既有权威内容。
// 任何一行校验失败整体拒绝，不做部分合并；调用方在失败时不得落盘。
func Merge(existing []byte, newLinesText, format string, validate bool) (MergeResult, error) {
	newLines := NonBlankLines(newLinesText)
	if len(newLines) == 0 {
		return MergeResult{}, ErrNoValidEntries
	}

	if validate {
		var violations []LineViolation
		for i, line := range newLines {
			if reason := validateLine(format, strings.TrimSpace(line)); reason != "" {
				violations = append(violations, LineViolation{Line: i + 1, Reason: reason})
			}
		}
		if len(violations) > 0 {
			return MergeResult{}, &ValidationError{Format: format, Violations: violations}
		}
	}

	combined := string(existing)
	if combined != "" && !strings.HasSuffix(combined, "\n") {
		combined += "\n"
	}
	combined += newLinesText

	return MergeResult{
		CombinedContent: combined,
		NewTotal:        CountEntries([]byte(combined)),
		Added:           int64(len(newLines)),
	}, nil
}

// validateLine 单行格式校验；返回空串表示通过。
func validateLine(format, line string) string {
	switch format {
	case FormatAccounts, FormatGmail:
		parts := strings.SplitN(line, ":", 2)
		if len(parts) < 2 {
			return "expected email:password"
		}
		if !strings.Contains(parts[0], "@") {
			return "invalid email"
		}
		if len(parts[1]) < 3 {
			return "password too short"
		}
	case FormatProfiles, FormatInstagram, FormatFacebook, FormatTwitter,
		FormatYoutube, FormatLinkedin, FormatTiktok:
		if !strings.Contains(line, ":") {
			return fmt.Sprintf("expected username:password for %s", format)
		}
	case FormatJSON:
		if !json.Valid([]byte(line)) {
			return "invalid JSON value"
		}
	case FormatCSV:
		if !strings.Contains(line, ",") {
			return "expected comma-separated values"
		}
	case FormatXMLEntry:
		if !strings.Contains(line, "<") || !strings.Contains(line, ">") {
			return "expected XML tags"
		}
	case FormatSQLEntry:
		upper := strings.ToUpper(line)
		if !strings.Contains(upper, "INSERT") && !strings.Contains(upper, "VALUES") {
			return "expected INSERT statement"
		}
	}
	// custom 与未知格式不校验
	return ""
}
