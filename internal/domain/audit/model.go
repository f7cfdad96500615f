// Package audit keeps the durable, append-only record of every completed
// calculation. Records are immutable once written and are partitioned per
// calculator path so two calculators never intermix entries. Distinct from
// the short-lived history ring buffer.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted ledger entry. The JSON field names are the
// de facto interchange format for record export and must stay stable for
// round-trip re-import compatibility.
type Record struct {
	ID                 string            `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	TimestampFormatted string            `json:"timestampFormatted"`
	CalculationType    string            `json:"calculationType"`
	Patient            map[string]string `json:"patient"`
	Inputs             map[string]string `json:"inputs"`
	ResultSummary      string            `json:"resultSummary"`
}

// timestampLayout is the human-readable second representation stored
// alongside the ISO-8601 timestamp.
const timestampLayout = "02 Jan 2006 15:04:05"

// newID derives a globally unique id from the record time and a random
// component, so ids sort roughly by creation time.
func newID(ts time.Time) string {
	random := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", ts.UnixMilli(), random)
}
