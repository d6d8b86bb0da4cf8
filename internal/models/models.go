package models

// Mode selects which refinement pass the agent runs.
type Mode string

const (
	// ModeFirstPass runs when a ticket is first flagged for refinement.
	ModeFirstPass Mode = "first_pass"
	// ModePMFeedback runs after the PM has replied to the agent's questions.
	ModePMFeedback Mode = "pm_feedback"
)

// Valid reports whether the mode is one of the recognized passes.
func (m Mode) Valid() bool {
	return m == ModeFirstPass || m == ModePMFeedback
}

// RefinementRequest is the immutable input to one agent invocation.
type RefinementRequest struct {
	IssueKey  string `json:"issueKey"`
	Mode      Mode   `json:"mode"`
	PMComment string `json:"pmComment,omitempty"`
}

// RefinementState mirrors the ticket field the external system stores between
// invocations. The service reads and advances it through tool calls only.
type RefinementState string

const (
	StateNeedsRefinement RefinementState = "NEEDS_REFINEMENT"
	StateWaitingForPM    RefinementState = "WAITING_FOR_PM"
	StateReadyForDev     RefinementState = "READY_FOR_DEV"
)

// ValidState reports whether s is a known refinement state.
func ValidState(s string) bool {
	switch RefinementState(s) {
	case StateNeedsRefinement, StateWaitingForPM, StateReadyForDev:
		return true
	}
	return false
}

// Action is the terminal action a completed run took against the ticket.
type Action string

const (
	ActionCommentPosted   Action = "COMMENT_POSTED"
	ActionTicketFinalized Action = "TICKET_FINALIZED"
	ActionNoAction        Action = "NO_ACTION"
)

// Error codes surfaced on outcomes and tool results. They cross the HTTP
// boundary as JSON, so they are part of the observable contract.
const (
	ErrInvalidMode          = "INVALID_MODE"
	ErrInvalidArguments     = "INVALID_ARGUMENTS"
	ErrToolNotFound         = "TOOL_NOT_FOUND"
	ErrTimeout              = "TIMEOUT"
	ErrChannelUnavailable   = "CHANNEL_UNAVAILABLE"
	ErrRemoteError          = "REMOTE_ERROR"
	ErrMalformedResponse    = "MALFORMED_RESPONSE"
	ErrBudgetExhausted      = "BUDGET_EXHAUSTED"
	ErrToolFailuresExceeded = "TOOL_FAILURES_EXCEEDED"
	ErrModelError           = "MODEL_ERROR"
)

// AgentOutcome is the only externally visible record of a run.
type AgentOutcome struct {
	Action  Action          `json:"action"`
	State   RefinementState `json:"state,omitempty"`
	Turns   int             `json:"turns"`
	Summary string          `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

// Failed reports whether the run terminated with an error code set.
func (o AgentOutcome) Failed() bool {
	return o.Error != ""
}

// FinalResult action values the model may emit on the structured terminal turn.
const (
	ResultComment  = "COMMENT"
	ResultFinalize = "FINALIZE"
	ResultNone     = "NONE"
)

// FinalResult is the structured payload the model must emit once it stops
// requesting tool calls.
type FinalResult struct {
	Action    string `json:"action"`
	Summary   string `json:"summary"`
	NextState string `json:"next_state"`
}

// Validate checks the result against the terminal schema.
func (r *FinalResult) Validate() error {
	switch r.Action {
	case ResultComment, ResultFinalize, ResultNone:
	default:
		return &ValidationError{Field: "action", Message: "must be one of COMMENT, FINALIZE, NONE"}
	}
	if !ValidState(r.NextState) {
		return &ValidationError{Field: "next_state", Message: "must be one of NEEDS_REFINEMENT, WAITING_FOR_PM, READY_FOR_DEV"}
	}
	if r.Summary == "" {
		return &ValidationError{Field: "summary", Message: "must not be empty"}
	}
	return nil
}

// ValidationError describes a single schema violation in a structured response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "field '" + e.Field + "': " + e.Message
}
