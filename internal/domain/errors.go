package domain

import "errors"

// ErrExecutableNotFound is returned when an external tool binary cannot be
// located on the system. Terminal for the affected WorkItem.
var ErrExecutableNotFound = errors.New("executable not found")

// ErrExternalTool is returned when an external tool exits non-zero. The
// captured stderr travels in the RunResult message. Terminal for the item.
var ErrExternalTool = errors.New("external tool failed")

// ErrOverviewGeneration is returned when overview generation fails after a
// successful reprojection. The reprojected file stays on disk but the item
// is not announced.
var ErrOverviewGeneration = errors.New("overview generation failed")
