//go:build debug

package runtime

import (
	"chat-sync/errors"
	"fmt"
)

// assertInvariant stops debug builds on the first duplicate that survived
// the identity index.
func assertInvariant(key string, ids []string) {
	panic(fmt.Sprintf("%s: conversation %s, ids %v", errors.ErrInvariantViolation, key, ids))
}
