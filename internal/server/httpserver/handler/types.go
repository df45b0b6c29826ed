package handler

import "time"

// Response is the JSON envelope of every admin response.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	NodeID string `json:"node_id,omitempty"`
	Joined bool   `json:"joined"`
}

// MemberInfo is one entry of /members.
type MemberInfo struct {
	Address  string    `json:"address"`
	State    string    `json:"state"`
	Self     bool      `json:"self"`
	Joined   time.Time `json:"joined,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// MembersResponse is the body of /members.
type MembersResponse struct {
	Self         string       `json:"self"`
	Members      []MemberInfo `json:"members"`
	PendingTasks int          `json:"pending_io_tasks"`
}
