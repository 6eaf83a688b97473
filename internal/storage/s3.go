package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected to pick a Content-Type.
const sniffLen = 3072

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage wraps LocalStorage and adds S3 upload capability.
// Processing always happens on local disk; finished clips, audio tracks
// and archives are published to the bucket.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	bucket string
	region string
}

// NewS3Storage creates a new S3Storage instance.
// The dir parameter specifies where working files are stored.
func NewS3Storage(dir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
	}, nil
}

// UploadToS3 uploads data to S3 and returns the public URL.
// The Content-Type is sniffed from the leading bytes of data.
func (s *S3Storage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	body, contentType, err := sniffContentType(data)
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	return url, nil
}

// Verify interface implementation at compile time.
var _ Storage = (*S3Storage)(nil)

// sniffContentType detects the MIME type of data without consuming it.
// Seekable readers are rewound so the SDK can still sign the payload.
func sniffContentType(data io.Reader) (io.Reader, string, error) {
	if rs, ok := data.(io.ReadSeeker); ok {
		offset, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, "", fmt.Errorf("seek body: %w", err)
		}
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(rs, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, "", fmt.Errorf("read body: %w", err)
		}
		if _, err := rs.Seek(offset, io.SeekStart); err != nil {
			return nil, "", fmt.Errorf("rewind body: %w", err)
		}
		return rs, mimetype.Detect(head[:n]).String(), nil
	}

	br := bufio.NewReaderSize(data, sniffLen)
	head, _ := br.Peek(sniffLen) // short reads still yield the available prefix
	return br, mimetype.Detect(head).String(), nil
}
