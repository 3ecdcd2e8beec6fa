package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PutObjectAPI is the part of *s3.Client the S3 gateway needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes the bucket and endpoint of the S3 backend.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an S3 client from the default AWS chain, overridden by
// static keys and a custom endpoint when they are set (MinIO and friends).
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return client, nil
}

// S3Gateway stores each upload as an object under prefix/<uuid>/<name>.
// The token is not used: bucket access comes from the AWS credentials.
type S3Gateway struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewS3Gateway(client PutObjectAPI, bucket, prefix string) (*S3Gateway, error) {
	if client == nil {
		return nil, errors.New("s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket cannot be empty")
	}
	return &S3Gateway{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *S3Gateway) Upload(ctx context.Context, _ string, content []byte, fileName string, metadata map[string]string) (*Receipt, error) {
	key := objectKey(g.prefix, fileName)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		Metadata:      metadata,
	}
	if ct := contentType(fileName); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := g.client.PutObject(ctx, input); err != nil {
		return nil, s3Error(err)
	}
	return &Receipt{RemoteID: key, Message: fmt.Sprintf("stored in s3://%s/%s", g.bucket, key)}, nil
}

func s3Error(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		msg := ""
		if re.Err != nil {
			msg = re.Err.Error()
		}
		return statusError("Upload", re.HTTPStatusCode(), msg)
	}
	return &TransportError{Err: err}
}

func objectKey(prefix, fileName string) string {
	return path.Join(prefix, uuid.NewString(), filepath.Base(fileName))
}

func contentType(fileName string) string {
	return mime.TypeByExtension(filepath.Ext(fileName))
}
