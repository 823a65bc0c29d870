package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"foodvote/internal/bank"
)

// ObjectConfig locates a snapshot in S3-compatible object storage.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	UseTLS    bool
}

// Object reads and writes a snapshot object through the MinIO client, which
// also speaks to AWS S3 and other S3-compatible stores.
type Object struct {
	client *minio.Client
	bucket string
	key    string
}

// NewObject creates an object store source from cfg.
func NewObject(cfg ObjectConfig) (*Object, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return NewObjectWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewObjectWithClient wraps an existing client.
func NewObjectWithClient(client *minio.Client, bucket, key string) *Object {
	return &Object{client: client, bucket: bucket, key: key}
}

func (o *Object) Describe() string {
	return "s3://" + o.bucket + "/" + o.key
}

func (o *Object) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, o.translate(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxSnapshotBytes+1))
	if err != nil {
		return nil, o.translate(err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, fetchErr(o, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes))
	}
	return data, nil
}

// Publish uploads the snapshot in a single PutObject; object stores make the
// new version visible atomically.
func (o *Object) Publish(ctx context.Context, data []byte) error {
	_, err := o.client.PutObject(ctx, o.bucket, o.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  bank.ContentType(data),
		CacheControl: "no-cache",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", o.Describe(), err)
	}
	return nil
}

func (o *Object) translate(err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
		return notFound(o)
	}
	return fetchErr(o, err)
}
