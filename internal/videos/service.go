// Package videos exposes the publish workflow: presigning source uploads,
// driving the resumable upload to the platform and recording the outcome.
package videos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/beamup-io/beamup/internal/common"
	"github.com/beamup-io/beamup/internal/platform"
	"github.com/beamup-io/beamup/internal/storage"
	"github.com/beamup-io/beamup/internal/uploader"
	"github.com/beamup-io/beamup/pkg/config"
	"github.com/beamup-io/beamup/pkg/types"
	"github.com/beamup-io/beamup/pkg/utils"
)

// Uploader drives one resumable upload end to end
type Uploader interface {
	Upload(ctx context.Context, req uploader.Request) (*uploader.Result, error)
}

// Lister reads remote video metadata
type Lister interface {
	ListVideos(ctx context.Context, targetID, token string) ([]platform.Video, error)
}

// Service handles video publish operations
type Service struct {
	db       *common.Database
	storage  storage.BlobStorage
	uploader Uploader
	lister   Lister
	config   *config.StorageConfig
}

// NewService creates a new video service
func NewService(db *common.Database, blobs storage.BlobStorage, up Uploader, lister Lister, cfg *config.StorageConfig) *Service {
	return &Service{
		db:       db,
		storage:  blobs,
		uploader: up,
		lister:   lister,
		config:   cfg,
	}
}

// Presign issues a presigned PUT URL so clients upload source objects
// straight to the bucket
func (s *Service) Presign(ctx context.Context, req *types.PresignRequest) (*types.PresignResponse, error) {
	key := utils.SanitizeObjectKey(req.ObjectKey)
	if key == "" {
		return nil, fmt.Errorf("object key must not be empty")
	}

	url, expiresAt, err := s.storage.PresignUpload(ctx, key, req.ContentType, s.config.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &types.PresignResponse{URL: url, ObjectKey: key, ExpiresAt: expiresAt}, nil
}

// Publish transfers the stored object to the platform under the given
// account and records the publish on success
func (s *Service) Publish(ctx context.Context, account *types.ConnectedAccount, req *types.PublishRequest) (*types.PublishRecord, error) {
	key := utils.SanitizeObjectKey(req.ObjectKey)

	log.Info().
		Str("object_key", key).
		Str("platform_user_id", account.PlatformUserID).
		Str("title", req.Title).
		Msg("starting publish")

	result, err := s.uploader.Upload(ctx, uploader.Request{
		ObjectKey:   key,
		TargetID:    account.PlatformUserID,
		AccessToken: account.AccessToken,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		log.Error().Err(err).Str("object_key", key).Msg("publish failed")
		return nil, err
	}

	record := &types.PublishRecord{
		AccountID:      account.ID,
		ObjectKey:      key,
		RemoteObjectID: result.RemoteObjectID,
		Title:          req.Title,
		Description:    req.Description,
		Size:           result.Size,
		Metadata:       types.JSONMap(result.RawMetadata),
	}
	if err := s.db.Create(record).Error; err != nil {
		// The upload itself succeeded; surface the bookkeeping failure
		return nil, fmt.Errorf("upload succeeded but recording it failed: %w", err)
	}

	return record, nil
}

// ListPublished returns this account's publish records, newest first
func (s *Service) ListPublished(ctx context.Context, accountID uuid.UUID) ([]types.PublishRecord, error) {
	var records []types.PublishRecord
	if err := s.db.Where("account_id = ?", accountID).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list publish records: %w", err)
	}
	return records, nil
}

// ListRemote returns the account's videos as the platform reports them
func (s *Service) ListRemote(ctx context.Context, account *types.ConnectedAccount) ([]platform.Video, error) {
	videos, err := s.lister.ListVideos(ctx, account.PlatformUserID, account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote videos: %w", err)
	}
	return videos, nil
}
