package download

import (
	"context"
	"errors"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Category names the kind of failure reported by the engine
type Category string

const (
	CategoryVideoUnavailable Category = "video_unavailable"
	CategoryGeoBlocked       Category = "geo_blocked"
	CategoryDRMProtected     Category = "drm_protected"
	CategoryCancelled        Category = "cancelled"
	CategoryForbidden        Category = "forbidden"
	CategoryBotDetection     Category = "bot_detection"
	CategoryRateLimited      Category = "rate_limited"
	CategoryNetwork          Category = "network"
	CategoryToolchain        Category = "toolchain"
	CategoryUnknown          Category = "unknown"
)

// Error is an engine failure with its classification
type Error struct {
	Category Category
	Fatal    bool
	Err      error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type rule struct {
	category Category
	fatal    bool
	needles  []string
}

// Evaluated top to bottom, so fatal rules win over recoverable ones when a
// message matches both.
var rules = []rule{
	{CategoryVideoUnavailable, true, []string{"unavailable", "private", "deleted", "removed"}},
	{CategoryGeoBlocked, true, []string{"copyright", "blocked", "not available in your country"}},
	{CategoryDRMProtected, true, []string{"drm", "protected"}},
	{CategoryForbidden, false, []string{"403", "forbidden"}},
	{CategoryBotDetection, false, []string{"bot", "sign in", "confirm you"}},
	{CategoryRateLimited, false, []string{"429", "too many", "rate limit"}},
	{CategoryNetwork, false, []string{"timeout", "timed out", "connection"}},
}

// Classify decides whether err is worth retrying. A nil error yields nil.
// Errors that were already classified are returned as they are.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Category: CategoryCancelled, Fatal: true, Err: err}
	}
	// a missing executable or a rejected flag fails the same way every time
	if _, ok := ytdlp.IsMisconfigError(err); ok {
		return &Error{Category: CategoryToolchain, Fatal: true, Err: err}
	}
	if _, ok := ytdlp.IsParsingError(err); ok {
		return &Error{Category: CategoryToolchain, Fatal: true, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(msg, needle) {
				return &Error{Category: r.category, Fatal: r.fatal, Err: err}
			}
		}
	}
	return &Error{Category: CategoryUnknown, Err: err}
}

// IsFatal reports whether err must not be retried
func IsFatal(err error) bool {
	c := Classify(err)
	return c != nil && c.Fatal
}

// CategoryOf returns the classification of err, or "" for nil
func CategoryOf(err error) Category {
	if c := Classify(err); c != nil {
		return c.Category
	}
	return ""
}

// switchesBrowser reports failures that may go away with another cookie source
func switchesBrowser(err error) bool {
	switch CategoryOf(err) {
	case CategoryBotDetection, CategoryForbidden:
		return true
	}
	return false
}
