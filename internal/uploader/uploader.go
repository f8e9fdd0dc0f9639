package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-units"
	"github.com/rs/zerolog/log"

	"github.com/beamup-io/beamup/internal/storage"
	"github.com/beamup-io/beamup/pkg/config"
)

// Endpoint is the remote ingestion API the driver pushes bytes to. It follows
// a three-phase session protocol: start a session for a declared size,
// transfer chunks at endpoint-dictated offsets, then finish with metadata.
type Endpoint interface {
	StartUploadSession(ctx context.Context, targetID, token string, totalSize int64) (StartResult, error)
	TransferChunk(ctx context.Context, targetID, token, sessionID string, startOffset int64, chunk io.Reader, length int64) (OffsetWindow, error)
	FinishUploadSession(ctx context.Context, targetID, token, sessionID, title, description string) (FinishResult, error)
}

// StartResult is the session identifier and initial offset window from a
// successful start call. EndOffset is nil when the endpoint leaves the first
// chunk bound to the client.
type StartResult struct {
	SessionID   string
	StartOffset int64
	EndOffset   *int64
}

// FinishResult is the outcome of a successful finish call. RemoteObjectID is
// empty when the endpoint response named no identifier; RawMetadata always
// holds the full response body.
type FinishResult struct {
	RemoteObjectID string
	RawMetadata    map[string]interface{}
}

// Request describes one upload call
type Request struct {
	ObjectKey   string
	TargetID    string
	AccessToken string
	Title       string
	Description string
}

// Result is returned once the whole start/transfer/finish sequence succeeded
type Result struct {
	RemoteObjectID string
	RawMetadata    map[string]interface{}
	SessionID      string
	Size           int64
}

// Service drives resumable uploads from blob storage to the remote endpoint.
// All state is scoped to a single Upload call, so concurrent Upload calls for
// different objects are safe; within one call the transfer loop is strictly
// sequential.
type Service struct {
	storage  storage.BlobStorage
	endpoint Endpoint

	chunkCeiling int64
	attempts     int
	backoffWait  time.Duration
}

// NewService creates an upload service. The chunk ceiling caps client-chosen
// chunk sizes only when the endpoint has not dictated a window; attempts and
// backoff govern the per-chunk retry policy.
func NewService(blobs storage.BlobStorage, endpoint Endpoint, cfg *config.PlatformConfig) *Service {
	ceiling := cfg.ChunkCeiling
	if ceiling <= 0 {
		ceiling = 8 * units.MiB
	}
	attempts := cfg.TransferAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := cfg.TransferBackoff
	if wait <= 0 {
		wait = 2 * time.Second
	}

	return &Service{
		storage:      blobs,
		endpoint:     endpoint,
		chunkCeiling: ceiling,
		attempts:     attempts,
		backoffWait:  wait,
	}
}

// Upload transfers the object at req.ObjectKey to the remote endpoint and
// returns the resulting remote object identifier. Any phase failure aborts
// the whole call; the caller never sees a partial result. The declared size
// comes from a metadata probe against storage, not from the caller, since the
// endpoint's chunk math depends on an exact byte count.
func (s *Service) Upload(ctx context.Context, req Request) (*Result, error) {
	size, err := s.storage.GetSize(ctx, req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to probe object size: %w", err)
	}

	session := NewSession(size)
	start, err := s.endpoint.StartUploadSession(ctx, req.TargetID, req.AccessToken, size)
	if err != nil {
		session.State = StateFailed
		return nil, &StartError{Err: err}
	}
	if err := session.Negotiate(start.SessionID, start.StartOffset, start.EndOffset); err != nil {
		session.State = StateFailed
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("object_key", req.ObjectKey).
		Int64("total_size", size).
		Msg("upload session negotiated")

	if err := s.transfer(ctx, session, req); err != nil {
		session.State = StateFailed
		return nil, err
	}

	finish, err := s.endpoint.FinishUploadSession(ctx, req.TargetID, req.AccessToken, session.ID, req.Title, req.Description)
	if err != nil {
		session.State = StateFailed
		return nil, &FinishError{SessionID: session.ID, Err: err}
	}
	session.State = StateFinished

	log.Info().
		Str("session_id", session.ID).
		Str("remote_object_id", finish.RemoteObjectID).
		Str("size", units.BytesSize(float64(size))).
		Msg("upload finished")

	return &Result{
		RemoteObjectID: finish.RemoteObjectID,
		RawMetadata:    finish.RawMetadata,
		SessionID:      session.ID,
		Size:           size,
	}, nil
}

// transfer runs the chunk loop: one storage range read and one endpoint push
// per iteration, re-synchronizing on the offsets the endpoint returns. The
// loop ends only when the endpoint signals it wants no further bytes.
func (s *Service) transfer(ctx context.Context, session *Session, req Request) error {
	session.State = StateTransferring

	for {
		start, end := session.NextRange(s.chunkCeiling)
		window, err := s.pushChunk(ctx, session, req, start, end)
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				return err
			}
			return &TransferError{SessionID: session.ID, LastOffset: session.CurrentOffset, Err: err}
		}

		more, err := session.Advance(window)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// pushChunk pushes one byte range, retrying the same range with exponential
// backoff on transfer failures. Retrying is safe because the endpoint keys
// received bytes by offset. Storage failures and cancellation are not
// retried.
func (s *Service) pushChunk(ctx context.Context, session *Session, req Request, start, end int64) (OffsetWindow, error) {
	var window OffsetWindow
	attempt := 0

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.backoffWait
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.attempts-1)), ctx)

	operation := func() error {
		attempt++

		chunk, err := s.storage.RetrieveRange(ctx, req.ObjectKey, start, end)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read object range: %w", err))
		}
		defer chunk.Close()

		w, err := s.endpoint.TransferChunk(ctx, req.TargetID, req.AccessToken, session.ID, start, chunk, end-start+1)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Warn().
				Err(err).
				Str("session_id", session.ID).
				Int64("start", start).
				Int64("end", end).
				Int("attempt", attempt).
				Msg("chunk transfer failed, retrying same range")
			return err
		}

		window = w
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return OffsetWindow{}, err
	}

	log.Debug().
		Str("session_id", session.ID).
		Int64("start", start).
		Int64("end", end).
		Str("chunk", units.BytesSize(float64(end-start+1))).
		Msg("chunk accepted")
	return window, nil
}
