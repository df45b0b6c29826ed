package domain

// CommandRequest is a client command frame: an operation name and its
// positional string arguments.
type CommandRequest struct {
	Operation string
	Args      []string
}

// Arg returns the i-th argument, or "" and false when absent.
func (r *CommandRequest) Arg(i int) (string, bool) {
	if r == nil || i < 0 || i >= len(r.Args) {
		return "", false
	}
	return r.Args[i], true
}

// CommandStatus is the outcome of a client command.
type CommandStatus int

const (
	// StatusSuccess marks a command that completed.
	StatusSuccess CommandStatus = iota
	// StatusFailure marks a command that failed; the payload carries the reason.
	StatusFailure
)

// CommandResponse is the reply to a CommandRequest.
type CommandResponse struct {
	Status  CommandStatus
	Payload string
}

// Success returns a success response with the given payload.
func Success(payload string) *CommandResponse {
	return &CommandResponse{Status: StatusSuccess, Payload: payload}
}

// Failure returns a failure response carrying err's message.
func Failure(err error) *CommandResponse {
	return &CommandResponse{Status: StatusFailure, Payload: err.Error()}
}

// OK reports whether the response is a success.
func (r *CommandResponse) OK() bool {
	return r != nil && r.Status == StatusSuccess
}
