package s3

import (
	"bytes"
	"context"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/slabgo/internal/hash"
)

// UploadConfig tunes how blobs are written to S3.
type UploadConfig struct {
	// PartSize is the part size for multipart uploads.
	// Default: 8MB (larger than the SDK default of 5MB; snapshots are
	// written sequentially and benefit from fewer round trips).
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5 (matches the SDK default).
	Concurrency int

	// EnableChecksum attaches CRC32C integrity checksums to uploads.
	// Default: true.
	EnableChecksum bool

	// LeavePartsOnError keeps uploaded parts of a failed multipart upload
	// instead of aborting it.
	// Default: false.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:          8 * 1024 * 1024,
		Concurrency:       5,
		EnableChecksum:    true,
		LeavePartsOnError: false,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// crc32cBase64 renders a CRC32C checksum the way the S3 API expects it:
// base64 over the big-endian bytes.
func crc32cBase64(data []byte) string {
	sum := hash.CRC32C(data)
	b := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}

	return base64.StdEncoding.EncodeToString(b)
}

// putObject uploads a whole blob in one request, optionally with a
// precomputed CRC32C so S3 verifies the body server-side.
func putObject(ctx context.Context, client Client, bucket, key string, data []byte, checksum bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if checksum {
		input.ChecksumCRC32C = aws.String(crc32cBase64(data))
	}

	_, err := client.PutObject(ctx, input)

	return err
}
