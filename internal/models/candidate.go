package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrMissingCandidateID is returned when a candidate payload has no usable id.
var ErrMissingCandidateID = errors.New("candidate is missing an id")

// Candidate is a movie up for vote. Payload is the catalog's description of
// it and is never inspected beyond its id.
type Candidate struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AddedAt time.Time       `json:"addedAt"`
}

// CandidateFromJSON builds a Candidate from a raw catalog object. The object's
// "id" may be a string or a number; numbers keep their literal text.
func CandidateFromJSON(raw json.RawMessage) (Candidate, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Candidate{}, fmt.Errorf("invalid candidate payload: %w", err)
	}
	id := bytes.TrimSpace(head.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return Candidate{}, ErrMissingCandidateID
	}

	var s string
	if id[0] == '"' {
		if err := json.Unmarshal(id, &s); err != nil {
			return Candidate{}, fmt.Errorf("invalid candidate id: %w", err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return Candidate{}, fmt.Errorf("candidate id must be a string or number: %w", err)
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Candidate{}, ErrMissingCandidateID
	}

	payload := make(json.RawMessage, len(raw))
	copy(payload, raw)
	return Candidate{ID: s, Payload: payload}, nil
}

func sortCandidatesByAdded(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].AddedAt.Equal(cs[j].AddedAt) {
			return cs[i].AddedAt.Before(cs[j].AddedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
