package netfail

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Category
	}{
		{"dns", "page.goto: net::ERR_NAME_NOT_RESOLVED at https://nope.invalid", DNSResolution},
		{"nxdomain", "DNS_PROBE_FINISHED_NXDOMAIN", DNSResolution},
		{"offline", "net::ERR_INTERNET_DISCONNECTED", DNSResolution},
		{"playwright timeout", "playwright: timeout: Timeout 60000ms exceeded.", NavigationTimeout},
		{"navigation timeout", "Navigation timeout of 30000 ms exceeded", NavigationTimeout},
		{"refused", "net::ERR_CONNECTION_REFUSED at http://localhost:1", ConnectionRefused},
		{"reset", "net::ERR_CONNECTION_RESET at https://example.com", ConnectionReset},
		{"forbidden status", "server responded with status 403", ProxyForbidden},
		{"forbidden http status", "proxy returned HTTP/1.1 403", ProxyForbidden},
		{"forbidden text", "Forbidden by upstream", ProxyForbidden},
		{"unknown", "net::ERR_CERT_AUTHORITY_INVALID", Unclassified},
		{"empty", "", Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message).Category)
		})
	}
}

func TestClassify_SpecificBeforeGeneric(t *testing.T) {
	tests := []struct {
		message string
		want    Category
	}{
		{"net::ERR_CONNECTION_RESET after timeout", ConnectionReset},
		{"timeout while resolving: net::ERR_NAME_NOT_RESOLVED", DNSResolution},
		{"403 Forbidden then net::ERR_CONNECTION_REFUSED", ProxyForbidden},
		{"net::ERR_INTERNET_DISCONNECTED net::ERR_CONNECTION_RESET", DNSResolution},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.message).Category, tt.message)
	}
}

func TestClassify_IgnoresTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Category
	}{
		{
			"timeout with 403 in path",
			"page.goto: Timeout 60000ms exceeded.\nCall log:\n  - navigating to \"https://shop.example.com/orders/140371\", waiting until \"domcontentloaded\"",
			NavigationTimeout,
		},
		{
			"refused on port 4030",
			"page.goto: net::ERR_CONNECTION_REFUSED at http://localhost:4030/",
			ConnectionRefused,
		},
		{
			"forbidden path segment",
			"page.goto: net::ERR_CONNECTION_REFUSED at https://example.com/forbidden",
			ConnectionRefused,
		},
		{
			"timeout in path",
			"page.goto: net::ERR_CONNECTION_REFUSED at https://example.com/timeout-settings",
			ConnectionRefused,
		},
		{
			"bare 403 in url only",
			"page.goto: net::ERR_ABORTED at https://example.com/?id=403",
			Unclassified,
		},
		{
			"call log mentions 403",
			"page.goto: net::ERR_ABORTED\nCall log:\n  - status 403 seen on a subresource",
			Unclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message).Category)
		})
	}
}

func TestClassifyWith_CustomOrder(t *testing.T) {
	rules := []Rule{
		{Category: NavigationTimeout, Patterns: []string{"timeout"}},
		{Category: ConnectionReset, Patterns: []string{"ERR_CONNECTION_RESET"}},
	}
	got := ClassifyWith(rules, "ERR_CONNECTION_RESET after timeout")
	assert.Equal(t, NavigationTimeout, got.Category)
}

func TestEnrich(t *testing.T) {
	t.Run("classified errors gain remediation text", func(t *testing.T) {
		raw := errors.New("net::ERR_CONNECTION_RESET at https://example.com")
		err := Enrich(raw)

		var classified *Error
		require.True(t, errors.As(err, &classified))
		assert.Equal(t, ConnectionReset, classified.Category)
		assert.Contains(t, err.Error(), "proxy")
		assert.Contains(t, err.Error(), "Connection reset:")
		assert.Contains(t, err.Error(), raw.Error())
		assert.True(t, errors.Is(err, raw))
		assert.Equal(t, ConnectionReset, CategoryOf(err))
	})

	t.Run("unclassified errors are returned unchanged", func(t *testing.T) {
		raw := errors.New("net::ERR_ABORTED")
		assert.Same(t, raw, Enrich(raw))
		assert.Equal(t, Unclassified, CategoryOf(raw))
	})

	t.Run("already classified errors are not wrapped twice", func(t *testing.T) {
		first := Enrich(errors.New("Timeout 1000ms exceeded"))
		wrapped := fmt.Errorf("navigate: %w", first)
		assert.Same(t, wrapped, Enrich(wrapped))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Enrich(nil))
	})
}

func TestCategory_NoConnectivity(t *testing.T) {
	assert.True(t, DNSResolution.NoConnectivity())
	assert.True(t, NavigationTimeout.NoConnectivity())
	assert.True(t, ConnectionRefused.NoConnectivity())
	assert.True(t, ConnectionReset.NoConnectivity())
	assert.False(t, ProxyForbidden.NoConnectivity())
	assert.False(t, Unclassified.NoConnectivity())
}

func TestUnreachable(t *testing.T) {
	assert.True(t, Unreachable("page.goto: net::ERR_CONNECTION_RESET at https://www.google.com/"))
	assert.True(t, Unreachable("403 Forbidden after Timeout 60000ms exceeded"))
	assert.True(t, Unreachable("net::ERR_INTERNET_DISCONNECTED"))
	assert.False(t, Unreachable("403 Forbidden"))
	assert.False(t, Unreachable("net::ERR_CERT_AUTHORITY_INVALID"))
	assert.False(t, Unreachable("net::ERR_ABORTED at https://example.com/timeout"))
}
