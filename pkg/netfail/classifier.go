// Package netfail classifies browser navigation failures into a small set
// of categories an operator can act on.
//
// Classification is a pure function of the failure text: an ordered list of
// rules is scanned and the first rule with a matching substring wins. More
// specific rules come first, so a message mentioning both a connection reset
// and a timeout is reported as a connection reset.
//
// Only the diagnostic part of a message is matched. URLs and the trailing
// Playwright call log are removed first, so a target such as
// http://localhost:4030/ never contributes a pattern.
package netfail

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Category is a closed set of navigation failure kinds.
type Category string

const (
	DNSResolution     Category = "DnsResolution"
	NavigationTimeout Category = "NavigationTimeout"
	ConnectionRefused Category = "ConnectionRefused"
	ConnectionReset   Category = "ConnectionReset"
	ProxyForbidden    Category = "ProxyForbidden"
	Unclassified      Category = "Unclassified"
)

// NoConnectivity reports whether the category means the browser could not
// reach the network at all, as opposed to a site-specific failure.
func (c Category) NoConnectivity() bool {
	switch c {
	case DNSResolution, NavigationTimeout, ConnectionRefused, ConnectionReset:
		return true
	default:
		return false
	}
}

// Rule maps any of its patterns or expressions to a category. Patterns are
// matched case-insensitively as substrings.
type Rule struct {
	Category    Category
	Patterns    []string
	Expressions []*regexp.Regexp
	Title       string
	Hint        string
}

func (r Rule) matches(lower string) bool {
	for _, pattern := range r.Patterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	for _, expr := range r.Expressions {
		if expr.MatchString(lower) {
			return true
		}
	}
	return false
}

var (
	urlPattern = regexp.MustCompile(`[a-z][a-z0-9+.-]*://\S+`)

	// forbiddenStatus matches 403 only where it stands as a status code.
	forbiddenStatus = regexp.MustCompile(`\b403\s+forbidden\b|\b(?:http(?:/[\d.]+)?|status(?:\s+code)?)[\s:=]*403\b|\bforbidden\b`)
)

// diagnostic lowercases message and drops the parts that describe the
// target rather than the failure.
func diagnostic(message string) string {
	lower := strings.ToLower(message)
	if i := strings.Index(lower, "call log:"); i >= 0 {
		lower = lower[:i]
	}
	return urlPattern.ReplaceAllString(lower, " ")
}

// Rules is the classification order. Earlier rules win.
var Rules = []Rule{
	{
		Category: DNSResolution,
		Patterns: []string{"ERR_NAME_NOT_RESOLVED", "DNS_PROBE_FINISHED_NXDOMAIN", "ERR_INTERNET_DISCONNECTED"},
		Title:    "Network connectivity issue",
		Hint:     "The sandbox cannot access the internet. Please check if the sandbox has internet access configured.",
	},
	{
		Category: ConnectionReset,
		Patterns: []string{"ERR_CONNECTION_RESET"},
		Title:    "Connection reset",
		Hint:     "The connection was reset by the server or a proxy. This often indicates that a network proxy (like Envoy/Istio) is blocking external internet access. Please check your network security settings to allow internet access.",
	},
	{
		Category: NavigationTimeout,
		Patterns: []string{"timeout"},
		Title:    "Navigation timeout",
		Hint:     "The website took too long to load. This could indicate a network issue or the website is down.",
	},
	{
		Category:    ProxyForbidden,
		Expressions: []*regexp.Regexp{forbiddenStatus},
		Title:       "Access forbidden",
		Hint:        "The request was blocked by a network proxy (likely Envoy). The sandbox appears to have network restrictions that block external internet access. Please contact your administrator to configure network security rules to allow internet access.",
	},
	{
		Category: ConnectionRefused,
		Patterns: []string{"ERR_CONNECTION_REFUSED"},
		Title:    "Connection refused",
		Hint:     "The website refused the connection. This could be a firewall or network configuration issue.",
	},
}

// Result is the outcome of classifying one failure message.
type Result struct {
	Category Category
	Title    string
	Hint     string
}

// Classify maps a raw failure message to a category using Rules.
func Classify(message string) Result {
	return ClassifyWith(Rules, message)
}

// ClassifyWith classifies message against an explicit rule list.
func ClassifyWith(rules []Rule, message string) Result {
	lower := diagnostic(message)
	for _, rule := range rules {
		if rule.matches(lower) {
			return Result{Category: rule.Category, Title: rule.Title, Hint: rule.Hint}
		}
	}
	return Result{Category: Unclassified}
}

// Error is a classified navigation failure.
type Error struct {
	Result
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s Error: %s", e.Title, e.Hint, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Enrich classifies err. Classified failures come back as *Error carrying
// remediation text; unclassified failures are returned unchanged.
func Enrich(err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	result := Classify(err.Error())
	if result.Category == Unclassified {
		return err
	}
	return &Error{Result: result, Err: err}
}

// CategoryOf returns the category of err, or Unclassified.
func CategoryOf(err error) Category {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Category
	}
	return Unclassified
}

// Unreachable reports whether message matches any rule whose category means
// the network could not be reached. Rule order does not matter here: a
// message that is both forbidden and timed out still counts.
func Unreachable(message string) bool {
	lower := diagnostic(message)
	for _, rule := range Rules {
		if rule.Category.NoConnectivity() && rule.matches(lower) {
			return true
		}
	}
	return false
}
