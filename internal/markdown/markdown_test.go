package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	t.Parallel()

	out, err := ToHTML("**Classification:** IMPORTANT\n\n- bring resume\n- register by March 10th")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Classification:</strong>")
	assert.Contains(t, out, "<li>bring resume</li>")
}

func TestToHTMLStripsRawHTML(t *testing.T) {
	t.Parallel()

	out, err := ToHTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestToHTMLTables(t *testing.T) {
	t.Parallel()

	out, err := ToHTML("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}
