package model

import "encoding/json"

// Request represents a command envelope sent by the plugin client.
// RequestID is opaque to the relay: it is never inspected, only echoed
// back in the response so the client can match replies.
type Request struct {
	RequestID *uint64         `json:"requestId,omitempty"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
}

// Response represents the relay's reply to a Request. Exactly one
// Response is produced per parseable Request.
type Response struct {
	RequestID *uint64     `json:"requestId,omitempty"`
	Status    string      `json:"status"` // "ok" or "error"
	Command   string      `json:"command"`
	Data      interface{} `json:"data"`
}

// Notice is the out-of-band message shape used for the connection
// greeting, the busy rejection and parse errors. It carries no
// requestId because it is not correlated with any request.
type Notice struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK builds a success response echoing the request's command and id.
func OK(req Request, data interface{}) Response {
	return Response{
		RequestID: req.RequestID,
		Status:    StatusOK,
		Command:   req.Command,
		Data:      data,
	}
}

// Error builds an error response whose data carries a message object,
// still echoing the original command and id.
func Error(req Request, msg string) Response {
	return Response{
		RequestID: req.RequestID,
		Status:    StatusError,
		Command:   req.Command,
		Data:      map[string]string{"message": msg},
	}
}
