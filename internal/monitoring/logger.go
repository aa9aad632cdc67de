// Package monitoring carries the shared diagnostic logger used by the mesh
// loading and pipeline packages.
package monitoring

import "log"

// Logf writes one diagnostic line, prefixed by convention with the emitting
// component ("[Loader]", "[Pipeline]", ...). It defaults to log.Printf and
// can be swapped out with SetLogger, which tests use to capture or mute
// pipeline logging.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. A nil argument installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
