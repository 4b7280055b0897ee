package xray

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"

	"clinic-notify/internal/config"
)

// Service resolves short-lived viewing links for x-ray images referenced by
// notifications. The bucket is private, so pushed payloads carry presigned
// URLs instead of raw object keys.
type Service interface {
	ImageURL(ctx context.Context, objectKey string) (string, error)
}

type service struct {
	client *minio.Client
	cfg    *config.Config
}

func NewService(client *minio.Client, cfg *config.Config) Service {
	return &service{client: client, cfg: cfg}
}

func (s *service) ImageURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.cfg.MinIOBucket, objectKey, 15*time.Minute, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
