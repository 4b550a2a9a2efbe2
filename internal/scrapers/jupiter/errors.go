package jupiter

import (
	"errors"
	"fmt"
)

var (
	// ErrAssertion is wrapped by every error caused by markup whose shape
	// does not match what the parsers expect.
	ErrAssertion = errors.New("unexpected markup")
	// ErrMissingData is wrapped when a document lacks the data required to
	// build a record. It is expected for subjects without offered sections.
	ErrMissingData = errors.New("missing required data")
	// ErrNothingProcessed is returned by a run that discovered subjects but
	// could not process any of them.
	ErrNothingProcessed = errors.New("no subject could be processed")
)

var (
	errNoSections    = fmt.Errorf("%w: no valid sections", ErrMissingData)
	errNoHeaderTable = fmt.Errorf("%w: no header table", ErrMissingData)
)
