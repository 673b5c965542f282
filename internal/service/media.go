package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"bookrecorder/internal/config"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

// ObjectStorage stores public objects by key.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
}

// R2Storage is ObjectStorage on Cloudflare R2 through the S3 API.
type R2Storage struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// NewR2Storage constructs an S3-compatible client for Cloudflare R2.
func NewR2Storage(ctx context.Context, cfg *config.Config) (*R2Storage, error) {
	if !cfg.R2Enabled() || cfg.R2PublicURL == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		s3Client:  s3Client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

func (r *R2Storage) PutObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	return nil
}

func (r *R2Storage) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := r.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}

func (r *R2Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", r.publicURL, key)
}

// MediaService handles book cover uploads. With nil storage every upload
// fails with ErrStorageDisabled.
type MediaService struct {
	storage  ObjectStorage
	bookRepo repository.BookRepository
	log      *logger.Logger
}

func NewMediaService(storage ObjectStorage, bookRepo repository.BookRepository, log *logger.Logger) *MediaService {
	return &MediaService{
		storage:  storage,
		bookRepo: bookRepo,
		log:      log.With("component", "MediaService"),
	}
}

// UploadCover enforces size/type, normalizes to a 400x600 JPEG, uploads it
// and attaches it to the caller's book. The replaced cover is deleted.
func (s *MediaService) UploadCover(ctx context.Context, bookID, userID int64, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	if s.storage == nil {
		return nil, model.ErrStorageDisabled
	}

	data, _, err := readAndValidateImage(file, header, model.MaxCoverSizeBytes)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := resizeToJPEG(data, model.CoverWidth, model.CoverHeight, 85)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", model.CoverFolder, uuid.NewString(), model.CoverExt)
	if err := s.storage.PutObject(ctx, key, jpegBytes, model.ContentTypeJPEG, model.CoverCacheControl); err != nil {
		return nil, err
	}

	url := s.storage.PublicURL(key)
	oldKey, err := s.bookRepo.SetCover(ctx, bookID, userID, url, key)
	if err != nil {
		s.DeleteCover(ctx, key)
		return nil, err
	}
	if oldKey != nil {
		s.DeleteCover(ctx, *oldKey)
	}

	s.log.Info("cover uploaded", "book_id", bookID, "key", key)
	return &model.UploadResult{URL: url, Key: key}, nil
}

// DeleteCover removes a stored cover. Failures only leave an orphaned object.
func (s *MediaService) DeleteCover(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.DeleteObject(ctx, key); err != nil {
		s.log.Warn("failed to delete cover", "key", key, "error", err)
	}
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(file io.Reader, header *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	if header.Size > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, "", model.ErrInvalidImageType
	}

	return data, contentType, nil
}

// resizeToJPEG center-crops to the target size and encodes as JPEG.
func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
