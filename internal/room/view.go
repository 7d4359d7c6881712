package room

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
)

// Enricher decorates a stored candidate with catalog details for display.
type Enricher interface {
	Enrich(ctx context.Context, c models.Candidate) (json.RawMessage, error)
}

// Snapshot returns the room as viewerID should see it. With anonymous votes
// on, per-user choices other than the viewer's own are hidden. Candidates are
// passed through the Enricher when one is configured; a failed enrichment
// keeps the stored payload.
func (e *Engine) Snapshot(ctx context.Context, code, viewerID string) (*models.Room, error) {
	r, err := e.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Settings.AnonymousVotes {
		redactVotes(r, viewerID)
	}
	if e.enricher != nil {
		e.enrich(ctx, r)
	}
	return r, nil
}

func redactVotes(r *models.Room, viewerID string) {
	for id, rec := range r.Votes {
		users := map[string]bool{}
		if v, ok := rec.Users[viewerID]; ok && viewerID != "" {
			users[viewerID] = v
		}
		rec.Users = users
		r.Votes[id] = rec
	}
}

func (e *Engine) enrich(ctx context.Context, r *models.Room) {
	for id, c := range r.Movies {
		payload, err := e.enricher.Enrich(ctx, c)
		if err != nil {
			e.log.WithFields(logrus.Fields{"room": r.Code, "movie": id}).WithError(err).Warn("failed to enrich movie")
			continue
		}
		c.Payload = payload
		r.Movies[id] = c
	}
}
