package db

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NextRev returns "<gen+1>-<random hex>" for a "<gen>-..." revision.
// An empty or malformed rev starts at generation 1.
func NextRev(rev string) string {
	gen := 0
	if head, _, ok := strings.Cut(rev, "-"); ok {
		gen, _ = strconv.Atoi(head)
	}
	return strconv.Itoa(gen+1) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
