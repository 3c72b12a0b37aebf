package schemas

// ActionType names one of the browser operations the planner may request.
type ActionType string

const (
	ActionNavigate   ActionType = "navigate"
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionExtract    ActionType = "extract"
	ActionScreenshot ActionType = "screenshot"
)

func (a ActionType) String() string { return string(a) }

// ResultStatus is the outcome of a single attempted action or a whole command.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

func (s ResultStatus) String() string { return string(s) }

// ErrorCode classifies why an action failed.
type ErrorCode string

const (
	ErrCodeElementNotFound   ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError      ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigationError   ErrorCode = "NAVIGATION_ERROR"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
)

func (c ErrorCode) String() string { return string(c) }

// ActionResult records what happened when one planned action was attempted.
// Only the fields relevant to the action and its outcome are populated.
type ActionResult struct {
	Action    string       `json:"action"`
	Status    ResultStatus `json:"status"`
	URL       string       `json:"url,omitempty"`
	Selector  string       `json:"selector,omitempty"`
	Content   string       `json:"content,omitempty"`
	Path      string       `json:"path,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode ErrorCode    `json:"error_code,omitempty"`
}

// PlannedActions echoes the plan the model produced, as it was decoded.
// Entries that were not JSON objects are nil.
type PlannedActions struct {
	Actions     []map[string]interface{} `json:"actions"`
	Explanation string                   `json:"explanation,omitempty"`
}

// CommandResult is the outcome of processing one user command. On success it
// carries the plan and one ActionResult per attempted action, in plan order.
type CommandResult struct {
	Status  ResultStatus    `json:"status"`
	Plan    *PlannedActions `json:"plan,omitempty"`
	Results []ActionResult  `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// Succeeded reports whether the command as a whole completed.
func (r CommandResult) Succeeded() bool { return r.Status == StatusSuccess }
