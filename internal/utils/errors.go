package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CustomError is the JSON error body returned by HTTP handlers.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

func New(code int, message string) error {
	return &CustomError{
		Code:    code,
		Message: message,
	}
}

// WriteError writes e as a JSON response with e.Code as the HTTP status.
func WriteError(w http.ResponseWriter, e *CustomError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(e)
}
