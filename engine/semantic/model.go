package semantic

import (
	"strings"
	"time"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// Facet names the text a point's vector was computed from. Each source record
// stores one point per non-empty facet.
const (
	FacetListing = "listing"
	FacetOffered = "offered"
	FacetWanted  = "wanted"
)

// VectorRecord is a single point to upsert.
type VectorRecord struct {
	PointID   string
	Embedding []float32
	Payload   map[string]any
}

// Candidate is a single nearest-neighbor hit with its decoded payload.
type Candidate struct {
	PointID string
	ID      string // source record id
	Score   float32
	Listing domain.Listing
}

// ListingPayload builds the index payload for a record under the given facet.
func ListingPayload(rec domain.SourceRecord, facet string) map[string]any {
	return map[string]any{
		"record_id":      rec.ID,
		"facet":          facet,
		"owner_id":       rec.OwnerID,
		"role":           string(rec.Role),
		"title":          rec.Title,
		"description":    rec.Description,
		"subjects":       strings.Join(rec.Subjects, "\n"),
		"offered_skills": rec.OfferedSkills,
		"wanted_skills":  rec.WantedSkills,
		"active":         rec.Active,
		"last_modified":  rec.LastModifiedAt.Unix(),
	}
}

// listingFromPayload decodes the display fields of a point payload.
func listingFromPayload(p map[string]string, lastModified int64) domain.Listing {
	var subjects []string
	if s := p["subjects"]; s != "" {
		subjects = strings.Split(s, "\n")
	}
	return domain.Listing{
		ID:             p["record_id"],
		OwnerID:        p["owner_id"],
		Role:           domain.Role(p["role"]),
		Title:          p["title"],
		Description:    p["description"],
		Subjects:       subjects,
		LastModifiedAt: time.Unix(lastModified, 0).UTC(),
	}
}
