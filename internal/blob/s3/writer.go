package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter using an S3-compatible backend. All
// uploads go through the SDK's transfer manager, which uploads small bodies
// in one request and switches to concurrent multipart above the part size.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// WriterOption configures a Writer.
type WriterOption func(*manager.Uploader)

// WithPartSize overrides the multipart part size in bytes. Values below the
// S3 minimum (5 MiB) are clamped to the minimum.
func WithPartSize(size int64) WriterOption {
	return func(u *manager.Uploader) {
		u.PartSize = clampPartSize(size)
	}
}

// NewWriter creates a new Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client, opts ...WriterOption) *Writer {
	mopts := make([]func(*manager.Uploader), len(opts))
	for i, o := range opts {
		mopts[i] = o
	}
	return &Writer{
		uploader: manager.NewUploader(c.S3(), mopts...),
		bucket:   c.Bucket(),
	}
}

// Put uploads data under path with the given content type.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

func clampPartSize(size int64) int64 {
	if size < minPartSize {
		return minPartSize
	}
	return size
}
