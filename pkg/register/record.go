package register

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// Record describes one registration entry to be created on the SPIRE server.
type Record struct {
	// ParentID is the SPIFFE ID of the entry's parent.
	ParentID string

	// SpiffeID is the SPIFFE ID the entry represents.
	SpiffeID string

	// Selectors hold colon-delimited type:value selectors, e.g. "unix:uid:0".
	Selectors []string

	// TTL is the lifetime, in seconds, of SVIDs issued from this entry.
	TTL int
}

// Validate checks that both SPIFFE IDs parse, that at least one well-formed
// selector is present, and that the TTL is not negative.
func (r Record) Validate() error {
	if _, err := spiffeid.FromString(r.SpiffeID); err != nil {
		return fmt.Errorf("invalid SPIFFE ID %q: %w", r.SpiffeID, err)
	}
	if _, err := spiffeid.FromString(r.ParentID); err != nil {
		return fmt.Errorf("invalid parent ID %q: %w", r.ParentID, err)
	}
	if len(r.Selectors) == 0 {
		return errors.New("at least one selector is required")
	}
	for _, s := range r.Selectors {
		if !strings.Contains(s, ":") {
			return fmt.Errorf("selector %q must be formatted as type:value", s)
		}
		// Selector values are interpolated into a shell command line, so
		// only a conservative character set is accepted.
		if strings.IndexFunc(s, func(r rune) bool { return !validSelectorRune(r) }) >= 0 {
			return fmt.Errorf("selector %q contains unsupported characters", s)
		}
	}
	if r.TTL < 0 {
		return errors.New("a non-negative TTL is required")
	}
	return nil
}

func validSelectorRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ':', '_', '-', '.', '/', '=', '@', ',':
		return true
	}
	return false
}

// DefaultRecords returns the stock registration set: one entry per
// simple-secrets instance, parented on the application identity.
func DefaultRecords() []Record {
	records := make([]Record, 0, 3)
	for i := 1; i <= 3; i++ {
		records = append(records, Record{
			ParentID:  "spiffe://example.org/simple-secrets",
			SpiffeID:  fmt.Sprintf("spiffe://example.org/simple-secrets%d", i),
			Selectors: []string{"unix:uid:0"},
			TTL:       120,
		})
	}
	return records
}
