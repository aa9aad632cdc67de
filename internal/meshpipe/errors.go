package meshpipe

import "fmt"

// UnsupportedAlgorithmError reports an algorithm/step pairing that the step's
// processor cannot execute.
type UnsupportedAlgorithmError struct {
	Step      Step
	Algorithm Algorithm
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported algorithm %q for step %q", e.Algorithm, e.Step)
}
