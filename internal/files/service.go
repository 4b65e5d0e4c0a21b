package files

import (
	"context"
	"io"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/traces"
)

// Meter records feature consumption. *usage.Service implements it; nil
// disables metering.
type Meter interface {
	Increment(ctx context.Context, orgID, feature string, delta int64) error
}

// UploadParams is the input to Service.Upload.
type UploadParams struct {
	OrgID        string
	UploadedBy   string
	OriginalName string
	IsPublic     bool
	Body         io.Reader
}

// Service owns upload lifecycle: disk writes, metadata and storage
// metering.
type Service struct {
	store   Store
	storage *DiskStorage
	meter   Meter
	maxSize int64
}

// NewService creates a file service. meter may be nil.
func NewService(store Store, storage *DiskStorage, meter Meter, maxSize int64) *Service {
	return &Service{store: store, storage: storage, meter: meter, maxSize: maxSize}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// Upload streams the body to disk and records the metadata row. Size,
// checksum and content type are computed from the bytes written, never
// taken from the request.
func (s *Service) Upload(ctx context.Context, params UploadParams) (*FileUpload, error) {
	ctx, span := traces.StartSpan(ctx, "files.Upload",
		traces.OrgID(params.OrgID), traces.ActorID(params.UploadedBy))
	defer span.End()

	id := idgen.WithPrefix("fil_")
	stored := id + ".bin"
	size, checksum, contentType, err := s.storage.Save(stored, params.Body, s.maxSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	f := &FileUpload{
		ID:           id,
		OrgID:        params.OrgID,
		UploadedBy:   params.UploadedBy,
		FileName:     stored,
		OriginalName: params.OriginalName,
		ContentType:  contentType,
		SizeBytes:    size,
		Checksum:     checksum,
		IsPublic:     params.IsPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, f); err != nil {
		_ = s.storage.Remove(stored)
		return nil, err
	}

	metrics.FileUploadBytes.Observe(float64(size))
	logging.L(ctx).Info("file uploaded",
		"file_id", f.ID, "org_id", f.OrgID, "size", size, "content_type", contentType)
	if s.meter != nil {
		if err := s.meter.Increment(ctx, f.OrgID, org.FeatureStorage, size); err != nil {
			logging.L(ctx).Warn("storage metering failed", "org_id", f.OrgID, "error", err)
		}
	}
	return f, nil
}

// Download opens the stored bytes and bumps the download counter.
func (s *Service) Download(ctx context.Context, orgID, id string) (*FileUpload, io.ReadSeekCloser, error) {
	f, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(f.FileName)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.IncrementDownloads(ctx, orgID, id); err != nil {
		rc.Close()
		return nil, nil, err
	}
	return f, rc, nil
}

// Delete removes the metadata row and the bytes on disk, releasing the
// storage quota.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	f, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.storage.Remove(f.FileName); err != nil {
		logging.L(ctx).Warn("file removal failed", "file_id", id, "error", err)
	}
	if s.meter != nil {
		if err := s.meter.Increment(ctx, orgID, org.FeatureStorage, -f.SizeBytes); err != nil {
			logging.L(ctx).Warn("storage metering failed", "org_id", orgID, "error", err)
		}
	}
	return nil
}

// TotalSize reports stored bytes for an org, used as the storage drift
// counter in the metering job.
func (s *Service) TotalSize(ctx context.Context, orgID string) (int64, error) {
	return s.store.SumSizeByOrg(ctx, orgID)
}
