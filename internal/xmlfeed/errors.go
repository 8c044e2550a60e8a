package xmlfeed

import "fmt"

// ParseError reports a source document that is not well-formed XML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed feed document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
