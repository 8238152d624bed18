package metrics

import (
	"fmt"
	"strings"
)

// Bucket is one of the canonical status categories.
type Bucket int

// Buckets. Unclassified is the zero value.
const (
	Unclassified Bucket = iota
	Open
	Working
	Done
	Archived
)

var bucketNames = [...]string{
	Unclassified: "unclassified",
	Open:         "open",
	Working:      "working",
	Done:         "done",
	Archived:     "archived",
}

func (b Bucket) String() string {
	if b < 0 || int(b) >= len(bucketNames) {
		return fmt.Sprintf("bucket(%d)", int(b))
	}
	return bucketNames[b]
}

// MarshalText encodes the bucket by name.
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a bucket name.
func (b *Bucket) UnmarshalText(text []byte) error {
	v, err := ParseBucket(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBucket returns the bucket named s (case-insensitive).
func ParseBucket(s string) (Bucket, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range bucketNames {
		if n == s {
			return Bucket(i), nil
		}
	}
	return Unclassified, fmt.Errorf("metrics: unknown bucket %q", s)
}

type rule struct {
	bucket   Bucket
	keywords []string
}

// rules are evaluated in order; the first rule with any keyword contained in
// the normalized status wins.
var rules = []rule{
	{Open, []string{"open", "not started", "🔴"}},
	{Working, []string{"working", "in progress", "🟡"}},
	{Done, []string{"done", "complete", "🟢"}},
	{Archived, []string{"archived", "archive"}},
}

// Classify maps a free-text status to its bucket.
func Classify(status string) Bucket {
	s := normalize(status)
	if s == "" {
		return Unclassified
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.bucket
			}
		}
	}
	return Unclassified
}

// pendingStatuses is the literal vocabulary overdue detection accepts. It is
// intentionally narrower than the keyword rules: emoji markers and
// substrings do not qualify.
var pendingStatuses = map[string]struct{}{
	"open":        {},
	"working":     {},
	"in progress": {},
	"not started": {},
}

func isPending(status string) bool {
	_, ok := pendingStatuses[normalize(status)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
