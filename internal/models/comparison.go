package models

// ComparisonStatus classifies an external playlist entry against the catalog.
//
// "duplicate" here means the catalog itself holds more than one copy of the entry,
// which is unrelated to [StatusDuplicate] at ingestion time.
type ComparisonStatus string

const (
	ComparisonFound     ComparisonStatus = "found"
	ComparisonDuplicate ComparisonStatus = "duplicate"
	ComparisonMissing   ComparisonStatus = "missing"
)

// ComparisonResult is the classification of one external entry.
type ComparisonResult struct {
	Entry        *RawTrackRecord  `json:"entry"`
	Status       ComparisonStatus `json:"status"`
	ExternalRef  string           `json:"externalRef,omitempty"`
	LocalMatches int              `json:"localMatches"`
	MatchIDs     []string         `json:"matchIds,omitempty"`
}

// ComparisonCounts tallies results per status.
func ComparisonCounts(results []ComparisonResult) map[ComparisonStatus]int {
	counts := map[ComparisonStatus]int{ComparisonFound: 0, ComparisonDuplicate: 0, ComparisonMissing: 0}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
