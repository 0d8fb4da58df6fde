package engerr

import "fmt"

// HTTPStatusFor maps an error to the status code an HTTP handler should
// respond with: 400 for validation, 404 for not-found, 500 otherwise.
func HTTPStatusFor(err error) int {
	e, ok := err.(*Error)
	if !ok {
		return 500
	}
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindConfigInvalid, KindDimensionMismatch:
		return 400
	default:
		return 500
	}
}

// FormatForCLI renders an error for command-line output: a single
// line with the code for reference.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return fmt.Sprintf("error: %s [%s]", e.Message, e.Code)
	}
	return fmt.Sprintf("error: %s", err.Error())
}
