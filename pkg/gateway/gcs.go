package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// objectWriterFunc opens a writer for one object of the bucket.
type objectWriterFunc func(ctx context.Context, name, contentType string, metadata map[string]string) io.WriteCloser

// GCSGateway stores each upload as a Cloud Storage object under
// prefix/<uuid>/<name>. Like S3Gateway it ignores the archive token.
type GCSGateway struct {
	bucket    string
	prefix    string
	newWriter objectWriterFunc
}

func NewGCSGateway(client *storage.Client, bucket, prefix string) (*GCSGateway, error) {
	if client == nil {
		return nil, errors.New("gcs client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("gcs bucket cannot be empty")
	}

	handle := client.Bucket(bucket)
	return &GCSGateway{
		bucket: bucket,
		prefix: prefix,
		newWriter: func(ctx context.Context, name, contentType string, metadata map[string]string) io.WriteCloser {
			w := handle.Object(name).NewWriter(ctx)
			w.ContentType = contentType
			w.Metadata = metadata
			return w
		},
	}, nil
}

func (g *GCSGateway) Upload(ctx context.Context, _ string, content []byte, fileName string, metadata map[string]string) (*Receipt, error) {
	name := objectKey(g.prefix, fileName)

	w := g.newWriter(ctx, name, contentType(fileName), metadata)
	if _, err := w.Write(content); err != nil {
		w.Close()
		return nil, gcsError(err)
	}
	// The object only exists once Close succeeds.
	if err := w.Close(); err != nil {
		return nil, gcsError(err)
	}

	return &Receipt{RemoteID: name, Message: fmt.Sprintf("stored in gs://%s/%s", g.bucket, name)}, nil
}

func gcsError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return statusError("Upload", gerr.Code, gerr.Message)
	}
	return &TransportError{Err: err}
}
