// Package proctitle sets the process name shown by ps and top.
package proctitle

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned on platforms without a settable task name.
var ErrUnsupported = errors.New("proctitle: not supported on this platform")

// Set renames the process. Long titles are truncated to the platform limit.
func Set(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("proctitle: empty title")
	}
	return set(title)
}
