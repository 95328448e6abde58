package dispatch

// Response is the answer to one Request.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Payload any    `json:"payload"`
}

// GetPayload answers get. Value is present only when Cached.
type GetPayload struct {
	Cached bool `json:"cached"`
	Value  any  `json:"value,omitempty"`
}

// DeletePayload answers delete.
type DeletePayload struct {
	Removed bool `json:"removed"`
}

// RemovedPayload answers invalidate and clear.
type RemovedPayload struct {
	Removed int `json:"removed"`
}

// CompressPayload answers compress.
type CompressPayload struct {
	Compressed int `json:"compressed"`
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
