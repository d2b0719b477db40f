package types

import "strings"

// Step methods the engine knows how to perform.
const (
	MethodClick  = "click"
	MethodFill   = "fill"
	MethodPress  = "press"
	MethodSelect = "selectOption"
	MethodCheck  = "check"
	MethodHover  = "hover"
)

// StepMethods lists every supported Step method.
var StepMethods = []string{MethodClick, MethodFill, MethodPress, MethodSelect, MethodCheck, MethodHover}

// Step is one concrete page interaction planned from a natural-language
// action.
type Step struct {
	// Selector locates the target element.
	Selector string `json:"selector"`

	// Method is one of StepMethods.
	Method string `json:"method"`

	// Args are method arguments, e.g. the text for fill.
	Args []string `json:"args,omitempty"`

	// Frame names the iframe containing the element, empty for the main
	// frame. It matches a frame name or a substring of the frame URL.
	Frame string `json:"frame,omitempty"`

	// Description is a short summary of what the step does.
	Description string `json:"description,omitempty"`
}

// Substitute returns a copy of s with every %name% placeholder in Args
// replaced by its value from vars.
func (s Step) Substitute(vars map[string]string) Step {
	if len(vars) == 0 || len(s.Args) == 0 {
		return s
	}

	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "%"+name+"%", value)
	}
	replacer := strings.NewReplacer(pairs...)

	out := s
	out.Args = make([]string, len(s.Args))
	for i, arg := range s.Args {
		out.Args[i] = replacer.Replace(arg)
	}
	return out
}

// String describes the step for logs and the act response.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Method)
	b.WriteString(" ")
	b.WriteString(s.Selector)
	if s.Frame != "" {
		b.WriteString(" in frame ")
		b.WriteString(s.Frame)
	}
	return b.String()
}

// FrameDigest is the condensed markup of one child frame.
type FrameDigest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// PageDigest is the condensed view of a page handed to the interpreter.
type PageDigest struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Content     string        `json:"content"`
	Frames      []FrameDigest `json:"frames,omitempty"`
	Truncated   bool          `json:"truncated,omitempty"`
}
