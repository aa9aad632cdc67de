package mesh

import "fmt"

// ResourceLimitError reports a file or mesh exceeding the configured size or
// memory threshold. The loader raises it before any parse attempt.
type ResourceLimitError struct {
	Path    string
	SizeMB  float64
	LimitMB float64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("file too large: %s is %.1fMB > %.0fMB limit", e.Path, e.SizeMB, e.LimitMB)
}

// FormatError reports unparseable or structurally invalid loaded data.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid mesh data in %s: %s", e.Path, e.Reason)
}
