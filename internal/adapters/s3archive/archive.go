// Package s3archive uploads zstd-compressed trajectory artifacts to S3 or
// an S3-compatible store.
package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/pkg/fixfile"
)

// PutObjectAPI is the subset of *s3.Client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver implements ports.ArtifactArchiver.
type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	enc    chan *zstd.Encoder
}

// Options configures New.
type Options struct {
	Bucket   string
	Region   string
	Endpoint string // set for MinIO and other S3-compatible stores
	Prefix   string
}

// New builds an S3 client from the default credential chain.
func New(ctx context.Context, opts Options) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Archiver {
	const encoders = 2
	a := &Archiver{client: client, bucket: bucket, prefix: prefix, enc: make(chan *zstd.Encoder, encoders)}
	for range encoders {
		ze, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		a.enc <- ze
	}
	return a
}

// Key returns the object key used for a trajectory.
func (a *Archiver) Key(id string) string {
	return path.Join(a.prefix, id+".csv.zst")
}

// Archive encodes fixes in the artifact format, compresses and uploads them.
func (a *Archiver) Archive(ctx context.Context, id string, fixes []domain.TimedFix) error {
	var raw bytes.Buffer
	if err := fixfile.Encode(&raw, fixes); err != nil {
		return err
	}

	ze := <-a.enc
	compressed := ze.EncodeAll(raw.Bytes(), make([]byte, 0, raw.Len()/4))
	a.enc <- ze

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(a.Key(id)),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("text/csv"),
		ContentEncoding: aws.String("zstd"),
		Metadata: map[string]string{
			"samples": fmt.Sprint(len(fixes)),
		},
	})
	if err != nil {
		return domain.WrapError(domain.KindIOFailure, "upload artifact "+id, err)
	}
	return nil
}
