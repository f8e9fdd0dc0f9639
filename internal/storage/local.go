package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStorage implements BlobStorage for the local filesystem. Intended for
// development and tests; it cannot issue presigned URLs.
type LocalStorage struct {
	basePath string
	mutex    sync.RWMutex // For concurrent access safety
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Error().Err(err).Str("path", basePath).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("path", basePath).Msg("local storage initialized")
	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Store saves content to the local filesystem with atomic writes
func (ls *LocalStorage) Store(ctx context.Context, key string, content io.Reader, contentType string) error {
	startTime := time.Now()

	// Check if context is cancelled before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	fullPath := filepath.Join(ls.basePath, key)

	// Ensure the directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("key", key).Str("dir", dir).Msg("failed to create directory")
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Create temporary file for atomic write
	tempPath := fullPath + ".tmp." + fmt.Sprintf("%d", time.Now().UnixNano())
	tempFile, err := os.Create(tempPath)
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("temp_path", tempPath).Msg("failed to create temporary file")
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Ensure cleanup of temp file on failure
	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	bytesWritten, err := io.Copy(tempFile, content)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to write content to temporary file")
		return fmt.Errorf("failed to write content: %w", err)
	}

	// Ensure data is flushed to disk
	if err := tempFile.Sync(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to sync temporary file")
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	tempFile.Close()

	// Atomic move from temp to final location
	if err := os.Rename(tempPath, fullPath); err != nil {
		log.Error().Err(err).Str("key", key).Str("temp_path", tempPath).Msg("failed to move temporary file to final location")
		return fmt.Errorf("failed to move file to final location: %w", err)
	}

	log.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int64("bytes_written", bytesWritten).
		Dur("duration", time.Since(startTime)).
		Msg("file stored successfully")

	return nil
}

// Retrieve gets content from the local filesystem
func (ls *LocalStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := os.Open(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("key", key).Msg("file not found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		log.Error().Err(err).Str("key", key).Msg("failed to open file")
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, key, err)
	}

	return file, nil
}

// rangeReadCloser limits a file to a section while keeping it closable
type rangeReadCloser struct {
	io.Reader
	file *os.File
}

func (r *rangeReadCloser) Close() error { return r.file.Close() }

// RetrieveRange streams the inclusive byte range [start, end] of the object
func (ls *LocalStorage) RetrieveRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := os.Open(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, key, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrStorageUnavailable, key, err)
	}

	if start < 0 || end < start || end >= info.Size() {
		file.Close()
		return nil, fmt.Errorf("%w: bytes=%d-%d of %s (size %d)", ErrRangeNotSatisfiable, start, end, key, info.Size())
	}

	log.Debug().
		Str("key", key).
		Int64("start", start).
		Int64("end", end).
		Msg("object range opened")

	return &rangeReadCloser{
		Reader: io.NewSectionReader(file, start, end-start+1),
		file:   file,
	}, nil
}

// Delete removes content from the local filesystem
func (ls *LocalStorage) Delete(ctx context.Context, key string) error {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.Remove(filepath.Join(ls.basePath, key)); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("key", key).Msg("file already deleted or does not exist")
			return nil // Already deleted
		}
		log.Error().Err(err).Str("key", key).Msg("failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	log.Info().Str("key", key).Msg("file deleted successfully")
	return nil
}

// Exists checks if content exists in the local filesystem
func (ls *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	_, err := os.Stat(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		log.Error().Err(err).Str("key", key).Msg("failed to check file existence")
		return false, fmt.Errorf("%w: stat %s: %w", ErrStorageUnavailable, key, err)
	}

	return true, nil
}

// GetSize returns the size of content in the local filesystem
func (ls *LocalStorage) GetSize(ctx context.Context, key string) (int64, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	info, err := os.Stat(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("key", key).Msg("file not found when getting size")
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		log.Error().Err(err).Str("key", key).Msg("failed to get file info")
		return 0, fmt.Errorf("%w: stat %s: %w", ErrStorageUnavailable, key, err)
	}

	return info.Size(), nil
}

// PresignUpload is not available for local storage
func (ls *LocalStorage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, time.Time, error) {
	return "", time.Time{}, ErrPresignUnsupported
}
