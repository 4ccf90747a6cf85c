package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const MaxMediaSize = 8 << 20

var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ObjectStore is the part of the S3 API media uploads need.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MediaService stores post images in Cloudflare R2 and hands back the public
// URL platforms fetch them from.
type MediaService interface {
	Upload(ctx context.Context, userID string, file []byte) (string, error)
}

type mediaService struct {
	r2    config.R2
	store ObjectStore
}

func NewMediaService(r2 config.R2, store ObjectStore) MediaService {
	return &mediaService{r2: r2, store: store}
}

// R2Client builds an S3 client against the account's R2 endpoint.
func R2Client(ctx context.Context, r2 config.R2) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID))
	}), nil
}

func (m *mediaService) Upload(ctx context.Context, userID string, file []byte) (string, error) {
	if len(file) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrInvalidRequest)
	}
	if len(file) > MaxMediaSize {
		return "", fmt.Errorf("%w: file is larger than %d MB", ErrInvalidRequest, MaxMediaSize>>20)
	}

	kind, err := filetype.Match(file)
	if err != nil || !allowedMediaTypes[kind.MIME.Value] {
		err := fmt.Errorf("%w: only jpeg, png, gif and webp images are supported", ErrInvalidRequest)
		slog.Info(err.Error())
		return "", err
	}

	name, err := utils.GenerateRandomKey(21)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("media/%s/%s.%s", userID, name, kind.Extension)

	_, err = m.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.r2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload media: %w", err)
	}

	slog.Info("media uploaded", "user_id", userID, "key", key)
	return m.r2.PublicURL + "/" + key, nil
}
