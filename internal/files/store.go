package files

import "context"

// Store persists upload metadata. All operations are tenant-scoped.
type Store interface {
	Create(ctx context.Context, f *FileUpload) error
	Get(ctx context.Context, orgID, id string) (*FileUpload, error)
	Update(ctx context.Context, f *FileUpload) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f Filter) ([]*FileUpload, error)
	// IncrementDownloads is a single atomic update.
	IncrementDownloads(ctx context.Context, orgID, id string) error
	// SumSizeByOrg totals stored bytes, used as the storage usage counter.
	SumSizeByOrg(ctx context.Context, orgID string) (int64, error)
}
