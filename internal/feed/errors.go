package feed

import "fmt"

// FetchError reports a network failure or non-2xx response from the feed provider
type FetchError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ShapeError reports a feed whose envelope cannot be decoded.
// Per-entity validation failures never produce it.
type ShapeError struct {
	Feed  string
	Issue string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid %s feed: %s", e.Feed, e.Issue)
}
