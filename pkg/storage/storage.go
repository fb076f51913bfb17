// Package storage keeps issued certificate documents in an Azure Blob
// Storage container. Names are relative to the configured prefix.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/certify/pkg/lifecycle"
)

// Blobs reads and writes documents in one container.
type Blobs struct {
	client    *azblob.Client
	container string
	prefix    string
	logger    *slog.Logger
}

// New creates Blobs from a finalized config. The service is first
// contacted by the startup hook registered in Start.
func New(cfg *Config, logger *slog.Logger) (*Blobs, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Blobs{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
		logger:    logger.With("system", "storage", "container", cfg.Container),
	}, nil
}

// Start creates the container at startup when it does not exist.
func (b *Blobs) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("storage", func(ctx context.Context) error {
		_, err := b.client.CreateContainer(ctx, b.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("create container %s: %w", b.container, err)
		}
		b.logger.InfoContext(ctx, "storage ready")
		return nil
	})
	return nil
}

// Key returns the blob key of name, or an error for an unusable name.
func (b *Blobs) Key(name string) (string, error) {
	switch {
	case name == "":
		return "", ErrEmptyKey
	case strings.HasPrefix(name, "/"), strings.Contains(name, ".."):
		return "", ErrInvalidKey
	}
	return path.Join(b.prefix, name), nil
}

// Upload writes r to name with the given content type, replacing any
// existing document.
func (b *Blobs) Upload(ctx context.Context, name string, r io.Reader, contentType string) error {
	key, err := b.Key(name)
	if err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := b.client.UploadStream(ctx, b.container, key, r, opts); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Download opens name. The caller closes the reader.
func (b *Blobs) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := b.Key(name)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.DownloadStream(ctx, b.container, key, nil)
	if err != nil {
		return nil, b.mapError(err, "download", key)
	}
	return resp.Body, nil
}

// Delete removes name.
func (b *Blobs) Delete(ctx context.Context, name string) error {
	key, err := b.Key(name)
	if err != nil {
		return err
	}

	if _, err := b.client.DeleteBlob(ctx, b.container, key, nil); err != nil {
		return b.mapError(err, "delete", key)
	}
	return nil
}

func (b *Blobs) mapError(err error, op, key string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
