package uploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 {
	return &v
}

func TestSession_Negotiate(t *testing.T) {
	tests := []struct {
		name        string
		totalSize   int64
		startOffset int64
		endOffset   *int64
		shouldError bool
	}{
		{
			name:        "endpoint dictates first window",
			totalSize:   1000,
			startOffset: 0,
			endOffset:   i64(500),
		},
		{
			name:        "endpoint leaves window to client",
			totalSize:   1000,
			startOffset: 0,
			endOffset:   nil,
		},
		{
			name:        "resume from non-zero offset",
			totalSize:   1000,
			startOffset: 400,
			endOffset:   i64(800),
		},
		{
			name:        "negative start offset",
			totalSize:   1000,
			startOffset: -1,
			shouldError: true,
		},
		{
			name:        "start offset past object",
			totalSize:   1000,
			startOffset: 1001,
			shouldError: true,
		},
		{
			name:        "end offset before start",
			totalSize:   1000,
			startOffset: 400,
			endOffset:   i64(300),
			shouldError: true,
		},
		{
			name:        "end offset past object",
			totalSize:   1000,
			startOffset: 0,
			endOffset:   i64(1001),
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(tt.totalSize)
			assert.Equal(t, StateCreated, session.State)

			err := session.Negotiate("sess-1", tt.startOffset, tt.endOffset)

			if tt.shouldError {
				var protoErr *ProtocolError
				assert.ErrorAs(t, err, &protoErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StateNegotiated, session.State)
			assert.Equal(t, "sess-1", session.ID)
			assert.Equal(t, tt.startOffset, session.CurrentOffset)
			if tt.endOffset != nil {
				assert.Equal(t, *tt.endOffset, session.NextEndOffset)
			}
		})
	}

	t.Run("negotiate twice", func(t *testing.T) {
		session := NewSession(1000)
		require.NoError(t, session.Negotiate("sess-1", 0, nil))

		err := session.Negotiate("sess-2", 0, nil)
		var protoErr *ProtocolError
		assert.ErrorAs(t, err, &protoErr)
	})
}

func TestSession_NextRange(t *testing.T) {
	t.Run("endpoint-dictated window", func(t *testing.T) {
		session := NewSession(1000)
		require.NoError(t, session.Negotiate("sess-1", 0, i64(400)))

		start, end := session.NextRange(100)
		assert.Equal(t, int64(0), start)
		assert.Equal(t, int64(399), end)
	})

	t.Run("client window capped by ceiling", func(t *testing.T) {
		session := NewSession(1000)
		require.NoError(t, session.Negotiate("sess-1", 0, nil))

		start, end := session.NextRange(256)
		assert.Equal(t, int64(0), start)
		assert.Equal(t, int64(255), end)
	})

	t.Run("client window capped by object end", func(t *testing.T) {
		session := NewSession(1000)
		require.NoError(t, session.Negotiate("sess-1", 0, nil))

		start, end := session.NextRange(4096)
		assert.Equal(t, int64(0), start)
		assert.Equal(t, int64(999), end)
	})
}

func TestSession_Advance(t *testing.T) {
	setup := func(t *testing.T) *Session {
		session := NewSession(1000)
		require.NoError(t, session.Negotiate("sess-1", 0, i64(400)))
		return session
	}

	t.Run("endpoint wants more bytes", func(t *testing.T) {
		session := setup(t)

		more, err := session.Advance(OffsetWindow{StartOffset: i64(400), EndOffset: i64(800)})
		require.NoError(t, err)
		assert.True(t, more)
		assert.Equal(t, int64(400), session.CurrentOffset)
		assert.Equal(t, int64(800), session.NextEndOffset)

		start, end := session.NextRange(8192)
		assert.Equal(t, int64(400), start)
		assert.Equal(t, int64(799), end)
	})

	t.Run("equal offsets signal completion", func(t *testing.T) {
		session := setup(t)

		more, err := session.Advance(OffsetWindow{StartOffset: i64(1000), EndOffset: i64(1000)})
		require.NoError(t, err)
		assert.False(t, more)
		assert.Equal(t, int64(1000), session.CurrentOffset)
	})

	t.Run("absent offsets signal completion", func(t *testing.T) {
		session := setup(t)

		more, err := session.Advance(OffsetWindow{})
		require.NoError(t, err)
		assert.False(t, more)
	})

	t.Run("endpoint re-requests same start", func(t *testing.T) {
		// The endpoint is authoritative: if it did not durably receive the
		// chunk it repeats the start offset and the cursor must not move past it
		session := setup(t)

		more, err := session.Advance(OffsetWindow{StartOffset: i64(0), EndOffset: i64(400)})
		require.NoError(t, err)
		assert.True(t, more)
		assert.Equal(t, int64(0), session.CurrentOffset)
	})

	violations := []struct {
		name   string
		window OffsetWindow
	}{
		{
			name:   "start offset moves backward",
			window: OffsetWindow{StartOffset: i64(-5), EndOffset: i64(400)},
		},
		{
			name:   "end offset before start",
			window: OffsetWindow{StartOffset: i64(500), EndOffset: i64(450)},
		},
		{
			name:   "end offset past object",
			window: OffsetWindow{StartOffset: i64(400), EndOffset: i64(1200)},
		},
	}

	for _, tt := range violations {
		t.Run(tt.name, func(t *testing.T) {
			session := setup(t)

			_, err := session.Advance(tt.window)
			var protoErr *ProtocolError
			assert.ErrorAs(t, err, &protoErr)
		})
	}
}
