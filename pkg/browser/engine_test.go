package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/browserapi/pkg/types"
)

type fakeFrame struct {
	name, url string
}

func (f fakeFrame) Name() string { return f.name }
func (f fakeFrame) URL() string  { return f.url }

func TestMatchFrame(t *testing.T) {
	frames := []fakeFrame{
		{name: "", url: "https://shop.example.com/checkout"},
		{name: "", url: "https://pay.example.com/frame?id=1"},
		{name: "payment", url: "https://other.example.com/"},
	}

	tests := []struct {
		want    string
		wantURL string
		found   bool
	}{
		{"payment", "https://other.example.com/", true},
		{"pay.example.com", "https://pay.example.com/frame?id=1", true},
		{"checkout", "https://shop.example.com/checkout", true},
		{"ads", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, ok := matchFrame(frames, tt.want)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantURL, got.url)
		})
	}
}

func TestArgAt(t *testing.T) {
	step := types.Step{Args: []string{"hello"}}
	assert.Equal(t, "hello", argAt(step, 0))
	assert.Equal(t, "", argAt(step, 1))
	assert.Equal(t, "", argAt(types.Step{}, 0))
}

func TestFileChoosers(t *testing.T) {
	var f fileChoosers

	_, ok := f.current()
	assert.False(t, ok)

	removeFirst := f.add([]string{"/tmp/a.pdf"})
	removeSecond := f.add([]string{"/tmp/b.pdf", "/tmp/c.pdf"})

	paths, ok := f.current()
	assert.True(t, ok)
	assert.Equal(t, []string{"/tmp/b.pdf", "/tmp/c.pdf"}, paths, "newest registration answers")

	// Removing one call's registration leaves the other in place.
	removeSecond()
	paths, ok = f.current()
	assert.True(t, ok)
	assert.Equal(t, []string{"/tmp/a.pdf"}, paths)

	removeSecond()
	paths, _ = f.current()
	assert.Equal(t, []string{"/tmp/a.pdf"}, paths, "remove is idempotent")

	removeFirst()
	_, ok = f.current()
	assert.False(t, ok)
}

func TestFileChoosers_RemoveOlderFirst(t *testing.T) {
	var f fileChoosers
	removeFirst := f.add([]string{"/tmp/a.pdf"})
	f.add([]string{"/tmp/b.pdf"})

	removeFirst()
	paths, ok := f.current()
	assert.True(t, ok)
	assert.Equal(t, []string{"/tmp/b.pdf"}, paths)
}
