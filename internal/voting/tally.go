// Package voting holds the pure tallying and ranking rules. It knows nothing
// about storage; the room engine feeds it records and persists the results.
package voting

import "github.com/jason-s-yu/moviematch/internal/models"

// Apply records userID's vote on rec and returns the updated record.
// A user who already voted has their previous choice taken back first, so
// voting the same value twice leaves the counts unchanged.
func Apply(rec models.VoteRecord, userID string, value bool) models.VoteRecord {
	users := make(map[string]bool, len(rec.Users)+1)
	for id, v := range rec.Users {
		users[id] = v
	}
	out := models.VoteRecord{Yes: rec.Yes, No: rec.No, Users: users}

	if prev, voted := users[userID]; voted {
		if prev {
			out.Yes--
		} else {
			out.No--
		}
	}
	if value {
		out.Yes++
	} else {
		out.No++
	}
	users[userID] = value
	return out
}

// Repair recomputes the counters from the per-user choices. Records written
// by older clients may carry drifted counters; the mapping is authoritative.
func Repair(rec models.VoteRecord) models.VoteRecord {
	out := models.VoteRecord{Users: make(map[string]bool, len(rec.Users))}
	for id, v := range rec.Users {
		out.Users[id] = v
		if v {
			out.Yes++
		} else {
			out.No++
		}
	}
	return out
}

// AllVoted reports whether every member in users has a choice in rec.
// A room with no members never reaches quorum.
func AllVoted(users map[string]models.User, rec models.VoteRecord) bool {
	if len(users) == 0 {
		return false
	}
	for id := range users {
		if _, ok := rec.Users[id]; !ok {
			return false
		}
	}
	return true
}
