package backup

import (
	"context"
	"time"
)

// Config controls periodic snapshots of the event database.
type Config struct {
	Enabled  bool
	Interval time.Duration
	LocalDir string
	KeepLast int

	// BucketURL (s3://bucket/prefix) enables uploading each snapshot.
	BucketURL  string
	S3Endpoint string
	S3Region   string
}

// Snapshotter is implemented by *duckdb.Store.
type Snapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// Uploader ships one snapshot file off the host.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) error
}
