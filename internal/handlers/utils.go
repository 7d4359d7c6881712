package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/room"
)

const seatCookie = "auth_token"

// maxBodyBytes caps request bodies; candidate batches are the largest.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind room.Kind) int {
	switch kind {
	case room.KindValidation:
		return http.StatusBadRequest
	case room.KindForbidden:
		return http.StatusForbidden
	case room.KindNotFound:
		return http.StatusNotFound
	case room.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"message": ...}. Store failures are logged and
// reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	kind := room.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	var re *room.Error
	if errors.As(err, &re) {
		msg = re.Msg
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		msg = "something went wrong, please try again"
	}
	writeJSON(w, status, errorBody{Message: msg})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Message: fmt.Sprintf(format, args...)})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "bad request payload")
		return false
	}
	return true
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// flexibleID accepts a JSON string or number and returns it as text.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*f = flexibleID(n.String())
	return nil
}

// voteValue accepts true/false, "yes"/"no" and 1/0.
type voteValue bool

func (v *voteValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = voteValue(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "true", "1":
			*v = true
		case "no", "false", "0":
			*v = false
		default:
			return fmt.Errorf("invalid vote %q", x)
		}
	case float64:
		switch x {
		case 1:
			*v = true
		case 0:
			*v = false
		default:
			return fmt.Errorf("invalid vote %v", x)
		}
	default:
		return fmt.Errorf("invalid vote")
	}
	return nil
}
