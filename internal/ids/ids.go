// Package ids generates document and correlation identifiers, resolving the
// Open Question in SPEC_FULL.md section 9: a per-process monotonic counter
// combined with a process instance id, avoiding both the original's
// timestamp+random collision risk and the cost of a full UUID per document.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	instance = uuid.New().String()[:8]
	counter  uint64
)

// NextDocID returns a unique, monotonically increasing document id scoped to
// this process, for Branch Index Store documents' "_id" field.
func NextDocID() string {
	n := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("%s-%d", instance, n)
}

// NewCorrelationID returns a fresh correlation id for an Internal error
// response (SPEC_FULL.md section 7).
func NewCorrelationID() string {
	return uuid.New().String()
}

// NewRunID returns a fresh id for one hook invocation, used by the audit log.
func NewRunID() string {
	return uuid.New().String()
}
