package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(RenderMarkdown("# Demo\n\n<script>alert(1)</script>\n\n![cover](https://example.com/a.png)"))

	require.Contains(t, out, "<h1>Demo</h1>")
	require.NotContains(t, out, "<script>")
	require.Contains(t, out, `loading="lazy"`)
}

func TestExcerpt(t *testing.T) {
	html := string(RenderMarkdown("A **small** game\n\nbuilt in a weekend."))
	require.Equal(t, "A small game built in a weekend.", Excerpt(html, 100))

	short := Excerpt(html, 7)
	require.True(t, strings.HasSuffix(short, "…"))
	require.Equal(t, "A small…", short)
}
