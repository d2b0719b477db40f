package types

// ServiceName identifies this service in health and init payloads.
const ServiceName = "browserApi"

// Health and init status values.
const (
	StatusHealthy   = "healthy"   // StatusHealthy indicates a usable browser session.
	StatusUnhealthy = "unhealthy" // StatusUnhealthy indicates the session cannot serve requests.
	StatusError     = "error"     // StatusError indicates a failed initialization.
	StatusShutdown  = "shutdown"  // StatusShutdown is reported after an explicit shutdown.
)

// ActionResult is the response body for every browser action.
//
// Every field is always serialized. Snapshot fields fall back to empty
// strings when capture fails, so callers never branch on absence.
type ActionResult struct {
	// Success reports whether the action itself succeeded.
	Success bool `json:"success"`

	// Message is a human-readable summary of the outcome.
	Message string `json:"message"`

	// Error carries the failure text, empty on success.
	Error string `json:"error"`

	// URL is the page URL captured after the action.
	URL string `json:"url"`

	// Title is the page title captured after the action.
	Title string `json:"title"`

	// ScreenshotBase64 is a base64-encoded PNG captured after the action.
	ScreenshotBase64 string `json:"screenshot_base64"`

	// Action is an operation-specific label: the performed step for act,
	// the extraction payload for extract.
	Action string `json:"action"`
}

// Snapshot is the best-effort page state attached to every ActionResult.
type Snapshot struct {
	URL              string
	Title            string
	ScreenshotBase64 string
}

// Apply copies the snapshot fields onto r.
func (s Snapshot) Apply(r *ActionResult) {
	r.URL = s.URL
	r.Title = s.Title
	r.ScreenshotBase64 = s.ScreenshotBase64
}

// InitResult is the outcome of a session initialization.
type InitResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthStatus is the body returned by the health and init endpoints.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewFailure builds a failed ActionResult with empty snapshot fields.
func NewFailure(message, errText string) ActionResult {
	return ActionResult{
		Success: false,
		Message: message,
		Error:   errText,
	}
}
