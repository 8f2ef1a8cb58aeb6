package generator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
}

// ParseThread 把模型输出切分成单条帖子，去掉编号和引号。
// Malformed lines are kept; an all-blank input yields an empty thread.
func ParseThread(raw string) Thread {
	var posts Thread
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(line)
		if unicode.IsDigit(r) {
			if i := strings.IndexByte(line, ' '); i >= 0 {
				line = line[i+1:]
			}
		}
		line = stripQuotes(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		posts = append(posts, line)
	}
	return posts
}

func stripQuotes(s string) string {
	if utf8.RuneCountInString(s) < 2 {
		return s
	}
	first, fw := utf8.DecodeRuneInString(s)
	last, lw := utf8.DecodeLastRuneInString(s)
	if closing, ok := quotePairs[first]; ok && closing == last {
		return strings.TrimSpace(s[fw : len(s)-lw])
	}
	return s
}

// OverLimit returns the indexes of posts longer than limit runes.
func OverLimit(posts []string, limit int) []int {
	var idx []int
	for i, p := range posts {
		if utf8.RuneCountInString(p) > limit {
			idx = append(idx, i)
		}
	}
	return idx
}
