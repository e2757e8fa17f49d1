package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/relaydesk/relaydesk/internal/log"
)

// errorPayload is the JSON body of every non-2xx response. The message is
// always generic; upstream detail (credentials, SQL, provider responses)
// never reaches the widget.
type errorPayload struct {
	Error string `json:"error"`
}

// writeJSON encodes data into a buffer first so headers are only sent after
// successful encoding and a proper 500 can still be returned on failure.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger log.Logger) {
	writeJSON(w, status, errorPayload{Error: message}, logger)
}
