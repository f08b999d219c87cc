package wikipedia

import (
	"errors"
	"fmt"
)

// ErrUnknownLanguage reports a language edition this gateway is not
// configured to serve.
var ErrUnknownLanguage = errors.New("unsupported language")

// ValidationError reports a malformed request parameter. It is the
// caller's fault and never worth a retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
