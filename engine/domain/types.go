// Package domain defines the core types, validation, and error taxonomy for
// the retrieval engine. It acts as the validation gate at query entry points.
package domain

import (
	"strings"
	"time"
)

// Role classifies the owner of a listing.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// ValidRoles is the set of recognised roles.
var ValidRoles = map[Role]bool{
	RoleTutor:   true,
	RoleStudent: true,
}

// Complement returns the counterpart role for exchange matching.
func (r Role) Complement() Role {
	if r == RoleTutor {
		return RoleStudent
	}
	return RoleTutor
}

// SourceRecord is one row of the relational system-of-record as exposed by a
// RecordSource. Text fields feed the embedding; the rest becomes payload.
type SourceRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Role           Role      `json:"role"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Subjects       []string  `json:"subjects,omitempty"`
	OfferedSkills  string    `json:"offered_skills,omitempty"`
	WantedSkills   string    `json:"wanted_skills,omitempty"`
	Active         bool      `json:"active"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// CanonicalText is the text snapshot a listing vector is computed from.
func (r SourceRecord) CanonicalText() string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(r.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		parts = append(parts, d)
	}
	if len(r.Subjects) > 0 {
		parts = append(parts, strings.Join(r.Subjects, " "))
	}
	return strings.Join(parts, "\n")
}

// Listing is the payload of an indexed record as returned to callers.
type Listing struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Role           Role      `json:"role"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Subjects       []string  `json:"subjects,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Mode selects the retrieval strategy for a query.
type Mode string

const (
	ModeSemantic     Mode = "semantic"
	ModeHybrid       Mode = "hybrid"
	ModeAutocomplete Mode = "autocomplete"
	ModeExchange     Mode = "exchange"
)

// ValidModes is the set of recognised query modes.
var ValidModes = map[Mode]bool{
	ModeSemantic: true, ModeHybrid: true, ModeAutocomplete: true, ModeExchange: true,
}

// SearchQuery is the input to the query gateway.
type SearchQuery struct {
	Text    string            `json:"text"`
	Mode    Mode              `json:"mode"`
	Filters map[string]string `json:"filters,omitempty"`
	Limit   int               `json:"limit"`
}

// ExchangeIntent describes what a requester offers and wants to learn.
type ExchangeIntent struct {
	Offered string `json:"offered"`
	Wanted  string `json:"wanted"`
}

// Requester is the pre-validated identity handed in by the surrounding
// request layer. The engine never performs credential checks itself.
type Requester struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Anonymous reports whether no authenticated user is attached.
func (r Requester) Anonymous() bool { return r.UserID == "" }

// ScoredResult is one ranked hit. LexicalScore and CombinedScore are set only
// in hybrid mode; exchange mode reuses CombinedScore for the two-sided match.
type ScoredResult struct {
	Record        Listing `json:"record"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	CombinedScore float64 `json:"combined_score,omitempty"`
}

// ResultSet is the normalized envelope returned by the gateway.
type ResultSet struct {
	Mode        Mode           `json:"mode"`
	Results     []ScoredResult `json:"results"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// SyncError records one failed record within a sync run.
type SyncError struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// SyncRun is the accounting summary of one synchronization run. It is built
// incrementally while the run executes and never retained across runs.
type SyncRun struct {
	Attempted    int         `json:"attempted"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Errors       []SyncError `json:"errors,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}
