package stock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTXTPassthrough(t *testing.T) {
	out := Render([]string{"a@x.com:p1", "b@x.com:p2"}, RenderTXT)

	assert.Equal(t, "a@x.com:p1\nb@x.com:p2", out.Content)
	assert.Equal(t, "text/plain", out.MimeType)
	assert.Equal(t, RenderTXT, out.Extension)
}

func TestRenderUnknownFormatFallsBackToTXT(t *testing.T) {
	out := Render([]string{"a"}, "pdf")
	assert.Equal(t, "text/plain", out.MimeType)
}

func TestRenderCSVStructuredBlocks(t *testing.T) {
	entries := []string{
		"- Email: a@x.com",
		"- Password: p1",
		"- Phone: 123",
		"- Email: b@x.com", // 新 Email 标签开启下一条记录
		"- Password: p2",
		"- 2FA Enabled: yes",
		"unlabeled noise", // 约定外的行被忽略
	}
	out := Render(entries, RenderCSV)

	lines := strings.Split(out.Content, "\n")
	require.Len(t, lines, 3, "表头 + 两条记录")
	assert.Equal(t, "Email,Password,Recovery Email,Phone,Created,Verified,2FA Enabled,Storage Used", lines[0])
	assert.Equal(t, `"a@x.com","p1","","123","","","",""`, lines[1])
	assert.Equal(t, `"b@x.com","p2","","","","","yes",""`, lines[2])
	assert.Equal(t, "text/csv", out.MimeType)
	assert.Equal(t, RenderCSV, out.Extension)
}

func TestRenderCSVNoStructuredBlocks(t *testing.T) {
	// 没有任何标签块时只输出表头行
	out := Render([]string{"plain1", "plain2"}, RenderCSV)
	lines := strings.Split(out.Content, "\n")
	assert.Len(t, lines, 1)
}

func TestRenderCSVQuotesEmbeddedComma(t *testing.T) {
	out := Render([]string{"- Email: a@x.com", `- Password: p,with"quote`}, RenderCSV)
	assert.Contains(t, out.Content, `"p,with\"quote"`)
}
