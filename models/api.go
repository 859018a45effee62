package models

// APIResponse is a generic structure for all API responses
type APIResponse struct {
	Status  string      `json:"status"`            // "success" or "error"
	Code    int         `json:"code"`              // HTTP status code
	Message string      `json:"message,omitempty"` // Human-readable message
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"` // nil on success
}

// APIError holds detailed error information
type APIError struct {
	Type    string `json:"type,omitempty"` // e.g. "AuthenticationError", "SessionLoading"
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Success builds a success envelope.
func Success(code int, message string, data interface{}) APIResponse {
	return APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Failure builds an error envelope.
func Failure(code int, message, errType, details string) APIResponse {
	return APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		Error: &APIError{
			Type:    errType,
			Details: details,
		},
	}
}
