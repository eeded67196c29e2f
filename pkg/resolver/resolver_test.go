package resolver

import (
	"errors"
	"testing"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landing = `<html><body>
<div class="sidebar"><a href="https://kb.example.com/wrong">not this</a></div>
<div id="rn-list">
  <ul>
    <li class="latest"><span>no link here</span></li>
    <li class="latest"><a href="  https://kb.example.com/rn/2025-03  ">March 2025</a></li>
    <li class="latest"><a href="https://kb.example.com/rn/2025-02">February 2025</a></li>
  </ul>
</div>
<div id="rn-list"><a class="latest" href="https://kb.example.com/second-container">x</a></div>
</body></html>`

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		container string
		item      string
		want      string
		notFound  string
	}{
		{name: "first linked item", container: "#rn-list", item: "li.latest a", want: "https://kb.example.com/rn/2025-03"},
		{name: "skips items without href", container: "#rn-list", item: "li.latest, li.latest a", want: "https://kb.example.com/rn/2025-03"},
		{name: "missing container", container: "#nope", item: "a", notFound: "container"},
		{name: "missing link", container: "#rn-list", item: "a.archive", notFound: "link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve([]byte(landing), tt.container, tt.item)
			if tt.notFound != "" {
				var nf *models.NotFoundError
				require.True(t, errors.As(err, &nf), "want NotFoundError, got %v", err)
				assert.Equal(t, tt.notFound, nf.What)
				assert.True(t, models.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("/rn/2025-03", "https://kb.example.com/landing/index.html")
	require.NoError(t, err)
	assert.Equal(t, "https://kb.example.com/rn/2025-03", got)

	got, err = ResolveURL("https://other.example.com/x", "https://kb.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/x", got)
}
