package types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta accompanies list responses.
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Skip      int    `json:"skip"`
	Limit     int    `json:"limit"`
	Total     int64  `json:"total"`
}
