package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLConverter_MainContent(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head><title>Dashboard</title><style>h1{}</style></head>
<body>
<nav><a href="/">Home</a></nav>
<main>
<h1>Dashboard</h1>
<p>Shows <strong>charts</strong> for every index.</p>
<ul><li>Bar</li><li>Line</li></ul>
</main>
<footer>Copyright</footer>
</body></html>`

	res, err := NewHTMLConverter().Convert([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, "Dashboard", res.Title)
	assert.Contains(t, res.Markdown, "# Dashboard")
	assert.Contains(t, res.Markdown, "**charts**")
	assert.Contains(t, res.Markdown, "- Bar")
	assert.NotContains(t, res.Markdown, "Home")
	assert.NotContains(t, res.Markdown, "Copyright")
}

func TestHTMLConverter_BodyWithoutChrome(t *testing.T) {
	page := `<html><head><title>Index Features</title></head><body>
<header>Site header</header>
<p>Indexes speed up search.</p>
<script>track()</script>
</body></html>`

	res, err := NewHTMLConverter().Convert([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, "# Index Features\n\nIndexes speed up search.", res.Markdown)
}

func TestHTMLConverter_Table(t *testing.T) {
	page := `<html><body><article>
<table><thead><tr><th>Option</th><th>Default</th></tr></thead>
<tbody><tr><td>limit</td><td>10</td></tr></tbody></table>
</article></body></html>`

	res, err := NewHTMLConverter().Convert([]byte(page))
	require.NoError(t, err)

	assert.Empty(t, res.Title)
	assert.Contains(t, res.Markdown, "| Option | Default |")
	assert.Contains(t, res.Markdown, "| limit | 10 |")
}
