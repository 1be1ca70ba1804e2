package mir

import "fmt"

// EncodeError reports a graph construct the encoder does not support.
// Nothing is ever dropped silently: a module containing such a construct
// has no pickled form.
type EncodeError struct {
	Decl    string // declaration containing the construct, if known
	Node    string // construct name, e.g. "pattern guard"
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Decl != "" {
		return fmt.Sprintf("encode %s in %q: %s", e.Node, e.Decl, msg)
	}
	return fmt.Sprintf("encode %s: %s", e.Node, msg)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports malformed pickled bytes.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode mir at byte %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("decode mir at byte %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }
