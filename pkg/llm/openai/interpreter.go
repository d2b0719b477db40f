package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/entrhq/browserapi/pkg/llm"
	"github.com/entrhq/browserapi/pkg/llm/tokens"
	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/types"
)

// DefaultMaxPromptTokens bounds the page digest sent with each request.
const DefaultMaxPromptTokens = 24000

// promptOverhead is reserved for instructions and framing around the digest.
const promptOverhead = 1500

const planSystemPrompt = `You control a web browser. Given a page digest and an instruction, choose exactly one interaction that carries out the instruction.

Respond with a single JSON object and nothing else:
{"selector": "<CSS selector of the target element>", "method": "<one of: %s>", "args": ["<argument>", ...], "frame": "<iframe name or URL fragment, empty for the main page>", "description": "<short summary>"}

Rules:
- fill takes the text to type, press takes a key name such as "Enter", selectOption takes the option value.
- click, check and hover take no args.
- Keep placeholders of the form %%name%% unchanged in args.
- Prefer ids, names and aria labels over positional selectors.
- If the instruction cannot be carried out on this page, respond with {"error": "<reason>"}.`

const extractSystemPrompt = `You read web pages and extract information. Given a page digest and an instruction, return the requested data.

Respond with a single JSON object and nothing else. Use {"extraction": "<text>"} unless the instruction asks for specific fields, in which case use those field names.`

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter) error

// WithPlanCache remembers up to size planned steps keyed by instruction and
// page content, so repeating an action on an unchanged page skips the model.
func WithPlanCache(size int) InterpreterOption {
	return func(i *Interpreter) error {
		if size <= 0 {
			i.cache = nil
			return nil
		}
		cache, err := lru.New[uint64, types.Step](size)
		if err != nil {
			return fmt.Errorf("failed to create plan cache: %w", err)
		}
		i.cache = cache
		return nil
	}
}

// WithTokenBudget bounds prompts to budget.
func WithTokenBudget(budget *tokens.Budget) InterpreterOption {
	return func(i *Interpreter) error {
		i.budget = budget
		return nil
	}
}

// WithInterpreterLogger sets the logger.
func WithInterpreterLogger(logger *logging.Logger) InterpreterOption {
	return func(i *Interpreter) error {
		i.logger = logger
		return nil
	}
}

// Interpreter turns natural-language instructions into page steps and
// extractions.
type Interpreter struct {
	provider llm.Provider
	budget   *tokens.Budget
	cache    *lru.Cache[uint64, types.Step]
	logger   *logging.Logger
}

// NewInterpreter creates an interpreter backed by provider.
func NewInterpreter(provider llm.Provider, opts ...InterpreterOption) (*Interpreter, error) {
	i := &Interpreter{
		provider: provider,
		budget:   tokens.NewBudget(DefaultMaxPromptTokens),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Plan picks the single step that carries out instruction on page.
func (i *Interpreter) Plan(ctx context.Context, instruction string, page types.PageDigest) (types.Step, error) {
	if strings.TrimSpace(instruction) == "" {
		return types.Step{}, fmt.Errorf("action is required")
	}

	key := planKey(instruction, page)
	if i.cache != nil {
		if step, ok := i.cache.Get(key); ok {
			i.logger.Debugf("Plan cache hit for %q", instruction)
			return step, nil
		}
	}

	system := fmt.Sprintf(planSystemPrompt, strings.Join(types.StepMethods, ", "))
	reply, err := i.provider.Complete(ctx, []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(i.userPrompt(instruction, page)),
	})
	if err != nil {
		return types.Step{}, err
	}

	step, err := parseStep(reply)
	if err != nil {
		i.logger.Warnf("Unusable plan for %q: %v (reply: %s)", instruction, err, reply)
		return types.Step{}, err
	}

	if i.cache != nil {
		i.cache.Add(key, step)
	}
	i.logger.Debugf("Planned %s for %q", step, instruction)
	return step, nil
}

// Extract answers instruction from page. The result is always a JSON
// object encoded as text.
func (i *Interpreter) Extract(ctx context.Context, instruction string, page types.PageDigest) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", fmt.Errorf("instruction is required")
	}

	reply, err := i.provider.Complete(ctx, []llm.Message{
		llm.SystemMessage(extractSystemPrompt),
		llm.UserMessage(i.userPrompt(instruction, page)),
	})
	if err != nil {
		return "", err
	}
	return normalizeExtraction(reply)
}

// CacheLen returns the number of cached plans.
func (i *Interpreter) CacheLen() int {
	if i.cache == nil {
		return 0
	}
	return i.cache.Len()
}

func (i *Interpreter) userPrompt(instruction string, page types.PageDigest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	fmt.Fprintf(&b, "Title: %s\n", page.Title)
	if page.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", page.Description)
	}

	var body strings.Builder
	body.WriteString("Page:\n")
	body.WriteString(page.Content)
	for _, frame := range page.Frames {
		fmt.Fprintf(&body, "\n\nFrame name=%q url=%q:\n", frame.Name, frame.URL)
		body.WriteString(frame.Content)
	}

	digest := body.String()
	if i.budget != nil {
		var cut bool
		digest, cut = i.budget.Fit(digest, promptOverhead)
		if cut {
			i.logger.Debugf("Page digest truncated to fit %d tokens", i.budget.Max())
			digest += "\n[truncated]"
		}
	}
	b.WriteString(digest)
	return b.String()
}

func planKey(instruction string, page types.PageDigest) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(instruction)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(page.URL)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(page.Content)
	for _, frame := range page.Frames {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(frame.URL)
		_, _ = h.WriteString(frame.Content)
	}
	return h.Sum64()
}

// jsonObject returns the outermost JSON object in reply, tolerating code
// fences and prose around it.
func jsonObject(reply string) (string, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return "", false
	}
	candidate := reply[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}

func parseStep(reply string) (types.Step, error) {
	obj, ok := jsonObject(reply)
	if !ok {
		return types.Step{}, fmt.Errorf("model did not return a JSON step")
	}

	if reason := gjson.Get(obj, "error"); reason.Exists() && reason.String() != "" {
		return types.Step{}, fmt.Errorf("model could not plan the action: %s", reason.String())
	}

	step := types.Step{
		Selector:    strings.TrimSpace(gjson.Get(obj, "selector").String()),
		Method:      strings.TrimSpace(gjson.Get(obj, "method").String()),
		Frame:       strings.TrimSpace(gjson.Get(obj, "frame").String()),
		Description: gjson.Get(obj, "description").String(),
	}
	for _, arg := range gjson.Get(obj, "args").Array() {
		step.Args = append(step.Args, arg.String())
	}

	if step.Selector == "" {
		return types.Step{}, fmt.Errorf("planned step has no selector")
	}
	if !slices.Contains(types.StepMethods, step.Method) {
		return types.Step{}, fmt.Errorf("planned step uses unsupported method %q", step.Method)
	}
	return step, nil
}

func normalizeExtraction(reply string) (string, error) {
	if obj, ok := jsonObject(reply); ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(obj)); err == nil {
			return buf.String(), nil
		}
		return obj, nil
	}

	text := strings.TrimSpace(reply)
	out, err := sjson.Set("{}", "extraction", text)
	if err != nil {
		return "", fmt.Errorf("failed to encode extraction: %w", err)
	}
	return out, nil
}
