package utils

import (
	"encoding/json"
	"net/http"
)

// WriteJSONResponse writes data as a JSON response body with the given
// status code. Encode errors after the header is written cannot be
// reported to the client and are ignored.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
