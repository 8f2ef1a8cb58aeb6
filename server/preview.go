package server

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/review"
)

// Raw HTML in posts is escaped; goldmark drops it unless WithUnsafe is set.
var md = goldmark.New()

// RenderPreview 把当前草稿渲染成一个简单的 HTML 页面，便于在浏览器中审阅。
func RenderPreview(snap review.Snapshot) (string, error) {
	over := map[int]bool{}
	for _, i := range generator.OverLimit(snap.Draft.Posts, generator.PostCharLimit) {
		over[i] = true
	}

	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\">")
	b.WriteString(fmt.Sprintf("<title>%s</title>", html.EscapeString(snap.Draft.Request.Topic)))
	b.WriteString("</head><body>")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>", html.EscapeString(snap.Draft.Request.Topic)))
	b.WriteString(fmt.Sprintf("<p>state: %s · revision %d · %d posts</p>",
		html.EscapeString(snap.State.String()), snap.Draft.Revision, len(snap.Draft.Posts)))
	if snap.ShareURL != "" {
		u := html.EscapeString(snap.ShareURL)
		b.WriteString(fmt.Sprintf("<p><a href=\"%s\">%s</a></p>", u, u))
	}
	b.WriteString("<ol>")
	for i, post := range snap.Draft.Posts {
		body, err := mdToHTML(post)
		if err != nil {
			return "", err
		}
		b.WriteString("<li>")
		b.WriteString(body)
		count := utf8.RuneCountInString(post)
		if over[i] {
			b.WriteString(fmt.Sprintf("<p><strong>%d/%d characters, over the limit</strong></p>", count, generator.PostCharLimit))
		} else {
			b.WriteString(fmt.Sprintf("<p><small>%d/%d</small></p>", count, generator.PostCharLimit))
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ol></body></html>")
	return b.String(), nil
}

func mdToHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
