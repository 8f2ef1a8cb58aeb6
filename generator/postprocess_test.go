package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseThread(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Thread
	}{
		{
			name: "numbered and quoted",
			raw:  "1. \"First post\"\n2. 'Second post'",
			want: Thread{"First post", "Second post"},
		},
		{
			name: "blank lines dropped",
			raw:  "\n1. one\n\n   \n2. two\n\n",
			want: Thread{"one", "two"},
		},
		{
			name: "crlf and slash numbering",
			raw:  "1/3 alpha\r\n2/3 beta\r\n3/3 gamma\r\n",
			want: Thread{"alpha", "beta", "gamma"},
		},
		{
			name: "unnumbered lines kept in order",
			raw:  "Intro line\n2. \"Second\"\nOutro",
			want: Thread{"Intro line", "Second", "Outro"},
		},
		{
			name: "curly quotes",
			raw:  "1. “Smart quotes”\n2. ‘single’",
			want: Thread{"Smart quotes", "single"},
		},
		{
			name: "only one layer stripped",
			raw:  "1. \"'nested'\"",
			want: Thread{"'nested'"},
		},
		{
			name: "mismatched quotes untouched",
			raw:  "1. \"open only",
			want: Thread{"\"open only"},
		},
		{
			name: "line empty after stripping",
			raw:  "1. \"\"\n2. real",
			want: Thread{"real"},
		},
		{
			name: "digit without separator kept",
			raw:  "42",
			want: Thread{"42"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseThread(tt.raw))
		})
	}
}

func TestParseThread_AllBlankIsEmpty(t *testing.T) {
	assert.Empty(t, ParseThread(""))
	assert.Empty(t, ParseThread("\n\n   \n\t\n"))
}

func TestParseThread_NoArtifactsLeft(t *testing.T) {
	raw := "1. \"a\"\n2. 'b'\n3. \"c\"\n4. 'd'\n5. \"e\""
	got := ParseThread(raw)
	assert.Equal(t, Thread{"a", "b", "c", "d", "e"}, got)
	for _, p := range got {
		assert.NotRegexp(t, `^[0-9]`, p)
		assert.NotRegexp(t, `^["']|["']$`, p)
	}
}

func TestOverLimit(t *testing.T) {
	long := make([]rune, PostCharLimit+1)
	for i := range long {
		long[i] = 'é'
	}
	exact := string(long[:PostCharLimit])
	got := OverLimit([]string{"short", string(long), exact}, PostCharLimit)
	assert.Equal(t, []int{1}, got)
}
