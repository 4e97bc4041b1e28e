// Package blob re-exports the blob abstractions and selects a backend.
package blob

import (
	"context"

	"gennotes/internal/blob/core"
	"gennotes/internal/infra/blob/fs"
	memorystore "gennotes/internal/infra/blob/memory"
	s3store "gennotes/internal/infra/blob/s3"

	"github.com/cockroachdb/errors"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 backend.
	S3Config = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// Options selects and parameterises a backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the configured blob store, defaulting to the filesystem driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(opts.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3store.New(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, errors.Newf("unknown blob driver %s", driver)
	}
}
