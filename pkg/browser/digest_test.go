package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestHTML(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		wantTitle string
		wantDesc  string
		wantHTML  []string
		wantNot   []string
		truncated bool
	}{
		{
			name: "drops scripts and styles",
			input: `<html>
				<head>
					<title>Test Page</title>
					<meta name="description" content="Test description">
					<script>alert('evil');</script>
					<style>body { color: red; }</style>
				</head>
				<body>
					<h1 id="main-title">Hello World</h1>
					<p class="intro">This is a test.</p>
				</body>
			</html>`,
			maxLength: 10000,
			wantTitle: "Test Page",
			wantDesc:  "Test description",
			wantHTML:  []string{`<h1 id="main-title">`, "Hello World", `<p class="intro">`, "This is a test"},
			wantNot:   []string{"<script>", "alert", "<style>", "color: red", "<title>"},
		},
		{
			name: "keeps targeting attributes on form controls",
			input: `<html><body>
				<form action="/submit" method="post">
					<input type="email" name="email" id="email" placeholder="you@example.com" aria-label="Email" data-testid="email-field" style="color:red">
					<select name="plan"><option value="pro" selected>Pro</option></select>
					<button type="submit" class="btn-primary" onclick="track()">Submit</button>
				</form>
			</body></html>`,
			maxLength: 10000,
			wantHTML: []string{
				`<form action="/submit" method="post">`,
				`type="email"`,
				`placeholder="you@example.com"`,
				`aria-label="Email"`,
				`data-testid="email-field"`,
				`<option value="pro" selected="">`,
				`class="btn-primary"`,
			},
			wantNot: []string{"style=", "onclick", "</input>"},
		},
		{
			name: "marks iframes without their contents",
			input: `<html><body>
				<div>Checkout</div>
				<iframe name="payment" src="https://pay.example.com/frame" width="300"></iframe>
			</body></html>`,
			maxLength: 10000,
			wantHTML:  []string{"<div>", `<iframe name="payment" src="https://pay.example.com/frame"></iframe>`},
			wantNot:   []string{"width="},
		},
		{
			name: "drops noise elements",
			input: `<html><body>
				<div>Content</div>
				<noscript>No JS</noscript>
				<svg><circle/></svg>
				<!-- hidden note -->
			</body></html>`,
			maxLength: 10000,
			wantHTML:  []string{"<div>", "Content"},
			wantNot:   []string{"<noscript>", "No JS", "<svg>", "hidden note"},
		},
		{
			name: "truncates at the length limit",
			input: `<html><body>
				<p>First paragraph with some content.</p>
				<p>Second paragraph with more content.</p>
				<p>Third paragraph that should be truncated.</p>
			</body></html>`,
			maxLength: 60,
			wantHTML:  []string{"First paragraph"},
			wantNot:   []string{"Third paragraph"},
			truncated: true,
		},
		{
			name: "void elements are not closed",
			input: `<html><body>
				<img src="logo.png" alt="Logo">
				<br>
				<hr>
			</body></html>`,
			maxLength: 10000,
			wantHTML:  []string{`<img src="logo.png" alt="Logo">`, "<br>", "<hr>"},
			wantNot:   []string{"</img>", "</br>", "</hr>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := digestHTML(tt.input, tt.maxLength)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.truncated, got.Truncated)
			for _, want := range tt.wantHTML {
				assert.Contains(t, got.HTML, want)
			}
			for _, notWant := range tt.wantNot {
				assert.NotContains(t, got.HTML, notWant)
			}
		})
	}
}

func TestDigestHTML_CollapsesWhitespace(t *testing.T) {
	got, err := digestHTML("<p>  lots \n\n of\t space  </p>", DefaultDigestLength)
	require.NoError(t, err)
	assert.Contains(t, got.HTML, "<p>lots of space</p>")
}

func TestDigestHTML_LongPageStaysNearLimit(t *testing.T) {
	input := "<body>" + strings.Repeat("<div>row of text</div>", 5000) + "</body>"
	got, err := digestHTML(input, 2000)
	require.NoError(t, err)
	assert.True(t, got.Truncated)
	assert.Less(t, len(got.HTML), 2500)
}

func TestKeepAttribute(t *testing.T) {
	tests := []struct {
		tag, attr string
		want      bool
	}{
		{"div", "id", true},
		{"div", "aria-expanded", true},
		{"div", "data-row", true},
		{"div", "href", false},
		{"a", "href", true},
		{"input", "placeholder", true},
		{"button", "onclick", false},
		{"p", "style", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.attr, func(t *testing.T) {
			assert.Equal(t, tt.want, keepAttribute(tt.tag, tt.attr))
		})
	}
}
