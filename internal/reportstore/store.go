package reportstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fileplacer/internal/placement"
)

// Store persists finished scan reports by ID.
type Store interface {
	Put(ctx context.Context, r StoredReport) error
	Get(ctx context.Context, id string) (StoredReport, error)
	// List returns report IDs, newest first.
	List(ctx context.Context) ([]string, error)
}

var ErrNotFound = errors.New("report not found")

// StoredReport is a report plus the metadata needed to find it again.
type StoredReport struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Model     string           `json:"model"`
	Source    string           `json:"source,omitempty"`
	Report    placement.Report `json:"report"`
}

// NewID returns a time-ordered scan ID, so sorting IDs sorts by creation time.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// normalizeID rejects anything that is not a UUID; IDs become file names and
// object keys.
func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: report id is required", placement.ErrInvalidInput)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: report id %q", placement.ErrInvalidInput, id)
	}
	return parsed.String(), nil
}

func sortNewestFirst(ids []string) []string {
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

func cloneReport(r StoredReport) StoredReport {
	if r.Report.Details != nil {
		details := make([]placement.Verdict, len(r.Report.Details))
		copy(details, r.Report.Details)
		r.Report.Details = details
	}
	return r
}
