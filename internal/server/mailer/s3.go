package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PutObjectAPI is the part of *s3.Client the outbox needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Outbox writes each message as a JSON object into a bucket that the mail
// delivery worker drains.
type S3Outbox struct {
	client PutObjectAPI
	bucket string
}

func NewS3Outbox(client PutObjectAPI, bucket string) *S3Outbox {
	return &S3Outbox{client: client, bucket: bucket}
}

// S3Options locate an S3-compatible endpoint.
type S3Options struct {
	AccessKey    string
	SecretKey    string
	Region       string
	BaseEndpoint string
	Bucket       string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3OutboxFromOptions builds an S3 client with static credentials.
func NewS3OutboxFromOptions(ctx context.Context, o S3Options) (*S3Outbox, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
			opts.UsePathStyle = true
		}
	})
	return NewS3Outbox(client, o.Bucket), nil
}

// ObjectKey lays messages out by day so the worker can list a prefix.
func ObjectKey(msg Message) string {
	d := msg.CreatedAt.UTC()
	return fmt.Sprintf("outbox/%04d/%02d/%02d/%s.json", d.Year(), d.Month(), d.Day(), uuid.NewString())
}

func (o *S3Outbox) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(ObjectKey(msg)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("outbox put: %w", err)
	}
	return nil
}
