package ingest

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSBucket is the Google Cloud Storage ObjectStore.
type GCSBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// OpenGCS opens a GCS client for the named bucket using ambient credentials
// (GOOGLE_APPLICATION_CREDENTIALS or instance identity).
func OpenGCS(ctx context.Context, bucketName string) (*GCSBucket, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBucket{client: client, bucket: client.Bucket(bucketName)}, nil
}

// List returns object names under prefix.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Read downloads one object.
func (b *GCSBucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close releases the underlying client.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}
