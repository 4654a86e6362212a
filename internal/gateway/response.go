package gateway

import (
	"encoding/json"
	"net/http"

	"reviewnotify/internal/types"
)

// apiError is the standard error envelope returned to clients.
type apiError struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError,
			types.ErrCodeInternalUnexpected, "failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes the standard error envelope. Internal error details are
// never exposed; callers pass a safe message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string) {
	resp := apiError{
		Error: errorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	body, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
