package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes int64 = 1 << 20

// decodeJSONBody decodes the request body into dst. It returns the HTTP
// status to answer with when decoding fails. With allowEmpty an absent or
// empty body leaves dst untouched.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) (int, error) {
	if r.Body == nil || r.Body == http.NoBody {
		if allowEmpty {
			return 0, nil
		}
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return 0, nil
			}
			return http.StatusBadRequest, fmt.Errorf("request body required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBodyBytes)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
	}
	return 0, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
