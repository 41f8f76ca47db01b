package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIntoEmpty(t *testing.T) {
	res, err := Merge(nil, "a@x.com:p1\nb@x.com:p2\n", FormatAccounts, true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Added)
	assert.Equal(t, int64(2), res.NewTotal)
	assert.Equal(t, "a@x.com:p1\nb@x.com:p2\n", res.CombinedContent)
}

func TestMergeAppendsWithNewlineJoin(t *testing.T) {
	// 既有内容无换行结尾时补一个，避免首条新数据粘到末行
	existing := []byte("old@x.com:p0")
	res, err := Merge(existing, "new@x.com:p1", FormatAccounts, true)
	require.NoError(t, err)

	assert.Equal(t, "old@x.com:p0\nnew@x.com:p1", res.CombinedContent)
	assert.Equal(t, int64(2), res.NewTotal, "总数从合并后内容重算")
	assert.Equal(t, int64(1), res.Added)
}

func TestMergeBlankInputRejected(t *testing.T) {
	_, err := Merge(nil, "  \n\n\t\n", FormatAccounts, false)
	assert.ErrorIs(t, err, ErrNoValidEntries)
}

func TestMergeValidationAtomic(t *testing.T) {
	// 一行不合法就整体拒绝，不做部分合并
	input := "good@x.com:pass\nnodelimiter\nalso@x.com:ok"
	_, err := Merge([]byte("seed@x.com:p"), input, FormatAccounts, true)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, 2, vErr.Violations[0].Line)
}

func TestMergeValidationSkippedWhenDisabled(t *testing.T) {
	res, err := Merge(nil, "nodelimiter", FormatAccounts, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Added)
}

func TestValidateLinePerFormat(t *testing.T) {
	cases := []struct {
		name   string
		format string
		line   string
		ok     bool
	}{
		{"accounts 通过", FormatAccounts, "a@x.com:secret", true},
		{"accounts 缺冒号", FormatAccounts, "a@x.com secret", false},
		{"accounts 邮箱无@", FormatAccounts, "ax.com:secret", false},
		{"accounts 密码过短", FormatAccounts, "a@x.com:pw", false},
		{"gmail 同 accounts 规则", FormatGmail, "g@gmail.com:secret", true},
		{"instagram 只要求冒号", FormatInstagram, "user:pass", true},
		{"instagram 缺冒号", FormatInstagram, "justuser", false},
		{"json 合法", FormatJSON, `{"email":"a@x.com"}`, true},
		{"json 非法", FormatJSON, `{"email":`, false},
		{"csv 要求逗号", FormatCSV, "a@x.com,p1", true},
		{"csv 缺逗号", FormatCSV, "a@x.com p1", false},
		{"xml 要求标签", FormatXMLEntry, "<item a='1'/>", true},
		{"xml 缺标签", FormatXMLEntry, "item a=1", false},
		{"sql 要求 INSERT/VALUES", FormatSQLEntry, "INSERT INTO t VALUES (1)", true},
		{"sql 其他语句", FormatSQLEntry, "SELECT 1", false},
		{"custom 不校验", FormatCustom, "anything goes", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reason := validateLine(c.format, c.line)
			if c.ok {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestValidationErrorMessageCapped(t *testing.T) {
	input := "a\nb\nc\nd\ne\nf\ng"
	_, err := Merge(nil, input, FormatAccounts, true)
	require.Error(t, err)
	// 7 行全部违规，错误串只展示前 5 条
	assert.Contains(t, err.Error(), "line 5")
	assert.NotContains(t, err.Error(), "line 6")
}
