package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Respond converts a Go value to JSON and sends it to the client.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if v, err := GetValues(ctx); err == nil {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("web: marshal response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(jsonData); err != nil {
		return fmt.Errorf("web: write response: %w", err)
	}

	return nil
}

// RespondError wraps a plain error string in the {"error": ...} shape
// every handler group uses to report a rejected request.
func RespondError(ctx context.Context, w http.ResponseWriter, msg string, statusCode int) error {
	resp := struct {
		Error string `json:"error"`
	}{Error: msg}

	return Respond(ctx, w, resp, statusCode)
}
