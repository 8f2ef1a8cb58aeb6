package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It answers with a numbered thread built from the instruction, so a revised
// context produces different posts.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	topic := "untitled"
	length := 3
	feedback := ""
	for _, line := range strings.Split(prompt.User, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Main Topic:"):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "Main Topic:"))
		case strings.HasPrefix(line, "Approximate Thread Length:"):
			f := strings.Fields(strings.TrimPrefix(line, "Approximate Thread Length:"))
			if len(f) > 0 {
				if n, err := strconv.Atoi(f[0]); err == nil && n > 0 {
					length = n
				}
			}
		case strings.HasPrefix(line, "[Revision"):
			if i := strings.Index(line, "]:"); i >= 0 {
				feedback = strings.TrimSpace(line[i+2:])
			}
		}
	}

	var sb strings.Builder
	for i := 1; i <= length; i++ {
		post := fmt.Sprintf("%s (%d/%d)", topic, i, length)
		if feedback != "" {
			post += " revised: " + feedback
		}
		sb.WriteString(fmt.Sprintf("%d. \"%s\"\n", i, post))
	}
	return sb.String(), nil
}
