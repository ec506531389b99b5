// Package handler serves the JSON API over the per-user collections.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/larder/internal/dispatch"
	"github.com/dukerupert/larder/internal/model"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

// Notifier is told after every successful write so subscribers get a fresh
// snapshot.
type Notifier interface {
	Notify(ctx context.Context, userID int64, c model.Collection)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeValidation answers 400 for a validation failure, or 500 for anything
// else.
func writeValidation(w http.ResponseWriter, err error, fallback string) {
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}
	writeError(w, http.StatusInternalServerError, fallback)
}

// decodeForm reads a flat JSON object into a dispatch.Form. Strings pass
// through unchanged, numbers and booleans keep their literal text, and null
// becomes an empty value.
func decodeForm(w http.ResponseWriter, r *http.Request) (dispatch.Form, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	form := make(dispatch.Form, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0 || bytes.Equal(v, []byte("null")):
			form[k] = ""
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", k, err)
			}
			form[k] = s
		case v[0] == '{' || v[0] == '[':
			return nil, &dispatch.ValidationError{Field: k, Message: "must be a scalar value"}
		default:
			form[k] = string(v)
		}
	}
	return form, nil
}
