package llm

import (
	"errors"
	"fmt"
)

// ProviderError is returned when the upstream chat API fails. Code is the
// HTTP status and Message the response body, surfaced verbatim.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrStreamingUnsupported is returned when a streaming completion is
// requested. Streaming is a hard capability boundary of this adapter.
var ErrStreamingUnsupported = errors.New("llm: streaming completions are not supported")
