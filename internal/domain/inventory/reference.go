package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReference builds a reference number of the form
// PREFIX-YYYYMMDD-XXXXXXXX where the suffix is random hex.
func GenerateReference(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}

// DerivedReference builds a child reference from a parent document
// reference, e.g. the outbound leg of a transfer.
func DerivedReference(parent, leg string) string {
	return parent + "-" + leg
}
