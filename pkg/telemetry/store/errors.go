package store

import (
	"fmt"
	"runtime"
)

// The telemetry store's error kinds, for callers to errors.Is against.
// keycodec and events return their own sentinels (keycodec.ErrCorruptKey,
// events.ErrCorruptValue), which do not wrap these.
var (
	// ErrCorruptKey means a key was too short or malformed to decode its
	// expected fields.
	ErrCorruptKey = fmt.Errorf("store: corrupt key")

	// ErrCorruptValue means a value failed its schema sentinel check or
	// could not be decoded.
	ErrCorruptValue = fmt.Errorf("store: corrupt value")

	// ErrStoreUnavailable wraps a backend-level failure (connection,
	// transaction conflict) that callers should treat as transient.
	ErrStoreUnavailable = fmt.Errorf("store: unavailable")

	// ErrUnexpected covers conditions outside the other kinds, such as a
	// retention cutoff duration out of range.
	ErrUnexpected = fmt.Errorf("store: unexpected error")

	// ErrTooLarge means a caller's request exceeded a configured item cap.
	ErrTooLarge = fmt.Errorf("store: request exceeds configured limit")
)

// AddLocation annotates err with the caller's file:line, or returns nil
// unchanged. Query and purge call this on every store error they surface,
// giving a breadcrumb back to the failing call site without needing a full
// stack trace.
func AddLocation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", location(2), err)
}

// location returns "file:line" for the caller skip frames up, for use as an
// error breadcrumb. skip follows runtime.Caller's convention: 1 is the
// caller of location itself.
func location(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
