package service

import (
	"context"
	"errors"
	"time"

	"warish/internal/warish/models"
	dErrors "warish/pkg/domain-errors"
)

type uploadResult struct {
	obj models.StoredObject
	err error
}

// upload stores data within the storage timeout. The wait is bounded even if
// the adapter ignores ctx; an object that lands after we gave up is deleted.
func (s *Service) upload(ctx context.Context, data []byte, mimeType, folder string) (models.StoredObject, error) {
	start := s.clock()
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	done := make(chan uploadResult, 1)
	go func() {
		obj, err := s.storage.Upload(ctx, data, mimeType, folder)
		done <- uploadResult{obj: obj, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			err := storageError(ctx, res.err, "upload")
			s.metrics.ObserveStorage("upload", outcome(err), s.clock().Sub(start))
			return models.StoredObject{}, err
		}
		s.metrics.ObserveStorage("upload", "ok", s.clock().Sub(start))
		return res.obj, nil
	case <-ctx.Done():
		s.metrics.ObserveStorage("upload", string(dErrors.CodeStorageTimeout), s.clock().Sub(start))
		go s.discardLateUpload(context.WithoutCancel(ctx), done)
		return models.StoredObject{}, storageError(ctx, ctx.Err(), "upload")
	}
}

func (s *Service) discardLateUpload(ctx context.Context, done <-chan uploadResult) {
	res := <-done
	if res.err == nil && res.obj.StorageID != "" {
		s.compensate(ctx, res.obj)
	}
}

// compensate deletes an uploaded object whose metadata never committed.
// Failures are logged; the object is then an orphan for offline cleanup.
func (s *Service) compensate(ctx context.Context, obj models.StoredObject) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storageTimeout)
	defer cancel()
	if err := s.storage.Delete(ctx, obj.StorageID); err != nil {
		s.metrics.IncCompensation("failed")
		s.logger.ErrorContext(ctx, "failed to delete orphaned object",
			"storage_id", obj.StorageID,
			"error", err,
		)
		return
	}
	s.metrics.IncCompensation("deleted")
}

func storageError(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeStorageTimeout, "storage "+op+" timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, "storage "+op+" failed")
}
