package document

import (
	"crypto/md5" //nolint:gosec // ids, not security
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IDLength is the length of generated record ids.
const IDLength = 32

var now = time.Now

// NewID returns a 32-character id: an md5 of a random UUID, truncated and
// suffixed with the current unix time in milliseconds as hex.
func NewID() string {
	ts := strconv.FormatInt(now().UnixMilli(), 16)
	sum := md5.Sum([]byte(uuid.NewString())) //nolint:gosec // ids, not security
	h := hex.EncodeToString(sum[:])
	return h[:IDLength-len(ts)] + ts
}
