package models

import "errors"

var (
	// ErrUnsupportedLanguage rejects a language code outside the configured set.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrInvalidQuery rejects an empty or oversized message.
	ErrInvalidQuery = errors.New("invalid query")

	ErrEmptyTopic             = errors.New("empty topic")
	ErrNotFound               = errors.New("topic not found")
	ErrAmbiguous              = errors.New("topic is ambiguous")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrUpstreamMalformed      = errors.New("upstream response malformed")
	ErrTranslationUnavailable = errors.New("translation unavailable")
)

// IsValidation reports whether err must be surfaced to the caller as a bad request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedLanguage) || errors.Is(err, ErrInvalidQuery)
}
