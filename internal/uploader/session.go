package uploader

import "fmt"

// State describes where a session is in its lifecycle
type State string

const (
	StateCreated      State = "created"
	StateNegotiated   State = "negotiated"
	StateTransferring State = "transferring"
	StateFinished     State = "finished"
	StateFailed       State = "failed"
)

// OffsetWindow is the byte range the remote endpoint is currently willing to
// accept. Either bound may be absent from an endpoint response.
type OffsetWindow struct {
	StartOffset *int64
	EndOffset   *int64
}

// Session tracks one in-flight resumable upload. The remote endpoint, not the
// client, is authoritative for how much of the object it has durably
// received, so the cursor only moves on offsets echoed back by the endpoint.
//
// A Session is confined to the single goroutine running the transfer loop;
// the protocol is strictly sequential per session.
type Session struct {
	ID            string
	TotalSize     int64
	CurrentOffset int64
	NextEndOffset int64
	State         State

	// endKnown records whether NextEndOffset was dictated by the endpoint
	// or provisionally computed from the chunk ceiling
	endKnown bool
}

// NewSession creates a session for an object of the given size
func NewSession(totalSize int64) *Session {
	return &Session{
		TotalSize: totalSize,
		State:     StateCreated,
	}
}

// Negotiate records the identifiers from a successful session start call.
// A nil endOffset means the endpoint left the first chunk bound to the client.
func (s *Session) Negotiate(id string, startOffset int64, endOffset *int64) error {
	if s.State != StateCreated {
		return &ProtocolError{SessionID: s.ID, Detail: fmt.Sprintf("negotiate in state %s", s.State)}
	}
	if startOffset < 0 || startOffset > s.TotalSize {
		return &ProtocolError{SessionID: id, Detail: fmt.Sprintf("start offset %d outside [0, %d]", startOffset, s.TotalSize)}
	}

	s.ID = id
	s.CurrentOffset = startOffset
	if endOffset != nil {
		if *endOffset < startOffset || *endOffset > s.TotalSize {
			return &ProtocolError{SessionID: id, Detail: fmt.Sprintf("end offset %d outside [%d, %d]", *endOffset, startOffset, s.TotalSize)}
		}
		s.NextEndOffset = *endOffset
		s.endKnown = true
	}
	s.State = StateNegotiated
	return nil
}

// NextRange returns the inclusive byte range for the next chunk. When the
// endpoint has not stated a preferred window, the bound is capped by the
// chunk ceiling and never exceeds the last byte of the object.
func (s *Session) NextRange(chunkCeiling int64) (start, end int64) {
	start = s.CurrentOffset
	if s.endKnown {
		return start, s.NextEndOffset - 1
	}

	end = start + chunkCeiling - 1
	if last := s.TotalSize - 1; end > last {
		end = last
	}
	return start, end
}

// Advance applies the offset window from a successful transfer response and
// reports whether the endpoint wants more bytes. A response with either bound
// absent, or with equal bounds, signals completion.
func (s *Session) Advance(window OffsetWindow) (more bool, err error) {
	if window.StartOffset == nil || window.EndOffset == nil {
		return false, nil
	}
	start, end := *window.StartOffset, *window.EndOffset
	if start == end {
		// Completion signal. Settle the cursor on the endpoint's final word
		// so the reported offsets reflect what it acknowledged.
		if start >= s.CurrentOffset && start <= s.TotalSize {
			s.CurrentOffset = start
			s.NextEndOffset = end
		}
		return false, nil
	}

	switch {
	case start < s.CurrentOffset:
		return false, &ProtocolError{SessionID: s.ID, Detail: fmt.Sprintf("start offset moved backward: %d < %d", start, s.CurrentOffset)}
	case end < start:
		return false, &ProtocolError{SessionID: s.ID, Detail: fmt.Sprintf("end offset %d before start offset %d", end, start)}
	case end > s.TotalSize:
		return false, &ProtocolError{SessionID: s.ID, Detail: fmt.Sprintf("end offset %d exceeds total size %d", end, s.TotalSize)}
	}

	s.CurrentOffset = start
	s.NextEndOffset = end
	s.endKnown = true
	return true, nil
}
