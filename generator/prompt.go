package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System string
	User   string
}

// Tones maps each tone to its style preamble.
type Tones map[Tone]string

// DefaultTones are the built-in style preambles.
func DefaultTones() Tones {
	return Tones{
		ToneNormal: "You are a developer crafting engaging X (Twitter) threads for a technical audience. " +
			"Keep a professional but approachable tone, brief and to the point.",
		ToneCasual: "You are an enthusiastic builder sharing what you learn with the community. " +
			"Your tone is casual, you sometimes use emojis and never use hashtags. " +
			"Focus on learning opportunities and community.",
		TonePromotional: "You are a marketing professional representing the project. " +
			"Your tone is more formal and focuses on business value and partnerships. " +
			"Use hashtags, mentions and links for engagement.",
	}
}

// Preamble returns the preamble for t, falling back to the normal tone.
func (t Tones) Preamble(tone Tone) string {
	if p, ok := t[tone]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	if p, ok := t[ToneNormal]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	return DefaultTones()[ToneNormal]
}

// BuildPrompt 生成首稿/修订共用的提示词。修订时反馈已追加在 Context 中。
func BuildPrompt(req Request, tones Tones) (Prompt, error) {
	if err := req.Validate(); err != nil {
		return Prompt{}, err
	}
	if tones == nil {
		tones = DefaultTones()
	}

	var sb strings.Builder
	sb.WriteString("Create a Twitter thread with the following requirements:\n\n")
	sb.WriteString(fmt.Sprintf("Main Topic: %s\n", strings.TrimSpace(req.Topic)))
	sb.WriteString(fmt.Sprintf("Context: %s\n", strings.TrimSpace(req.Context)))
	sb.WriteString(fmt.Sprintf("Required Keywords: %s\n", strings.Join(req.Keywords, ", ")))
	if len(req.Mentions) > 0 {
		sb.WriteString(fmt.Sprintf("Accounts to Tag: %s\n", strings.Join(req.Mentions, ", ")))
	}
	if link := strings.TrimSpace(req.Link); link != "" {
		sb.WriteString(fmt.Sprintf("Link: %s (include it in whichever post it is most relevant to; it does not have to be the last post)\n", link))
	}
	sb.WriteString(fmt.Sprintf("Approximate Thread Length: %d posts\n\n", req.Length))
	sb.WriteString("Format the response as a numbered list, one post per line, with each post staying within ")
	sb.WriteString(fmt.Sprintf("%d characters.\n", PostCharLimit))
	sb.WriteString("Make sure all required keywords and tagged accounts appear somewhere in the thread.\n")
	sb.WriteString("Do not add any text before or after the list.")

	return Prompt{
		System: tones.Preamble(req.Tone),
		User:   sb.String(),
	}, nil
}
