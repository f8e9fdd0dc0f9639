package uploader

import "fmt"

// StartError indicates the remote endpoint rejected the session start call.
// The raw endpoint response is reachable through Unwrap.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("upload session start rejected: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// TransferError indicates a chunk transfer failed after retries were
// exhausted. LastOffset is the last byte offset the endpoint acknowledged.
type TransferError struct {
	SessionID  string
	LastOffset int64
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("chunk transfer failed for session %s at offset %d: %v", e.SessionID, e.LastOffset, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// FinishError indicates the remote endpoint rejected the session finish call
type FinishError struct {
	SessionID string
	Err       error
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("upload session finish rejected for session %s: %v", e.SessionID, e.Err)
}

func (e *FinishError) Unwrap() error { return e.Err }

// ProtocolError indicates the endpoint returned an offset window that
// violates the session invariants (offsets moving backward or past the
// declared object size)
type ProtocolError struct {
	SessionID string
	Detail    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol invariant violated for session %s: %s", e.SessionID, e.Detail)
}
