package wikipedia

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// cacheKey derives a deterministic bounded-length key from an operation
// name, a language and the remaining parameters. Parameters are hashed
// so titles and queries of any length or alphabet produce safe keys.
func cacheKey(op, language string, params ...string) string {
	digest := xxhash.Sum64String(strings.Join(params, "\x1f"))
	return fmt.Sprintf("%s:%s:%016x", op, language, digest)
}
