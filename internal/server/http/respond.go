package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pathwayfr/pathway/internal/common"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindAuthentication:
		return http.StatusUnauthorized
	case common.KindAuthorization:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps err onto a status, a code and a public message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(common.KindOf(err)), errorResponse{
		Error:   common.CodeOf(err),
		Message: common.PublicMessage(err),
	})
}

// decodeJSON reads a single JSON value from the request body. An empty
// body, trailing data or a malformed document are validation errors.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return common.Validation("no JSON body received")
		}
		return common.Validation("invalid JSON body")
	}
	if dec.More() {
		return common.Validation("invalid JSON body")
	}
	return nil
}

// decodeOneOrMany accepts either a JSON object or an array of objects.
func decodeOneOrMany[T any](r *http.Request) ([]T, error) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var many []T
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, common.Validation("invalid JSON body")
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, common.Validation("invalid JSON body")
	}
	return []T{one}, nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
