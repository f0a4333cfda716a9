// Package mirror copies published snapshots to an object bucket, so a CDN or
// static host can serve sites without reaching the Registry.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/artpar/sitehost/internal/core/site"
)

const (
	contentType  = "text/html; charset=utf-8"
	cacheControl = "public, max-age=300"

	ownerMetadata = "project-id"
)

// ObjectAPI is the subset of the S3 client the mirror uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds bucket settings.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // S3-compatible endpoint; empty for AWS
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewClient creates an S3 client with static credentials.
func NewClient(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// S3Mirror writes each published snapshot to <prefix><name>/index.html and
// removes it when the name is released.
type S3Mirror struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Mirror creates a new S3Mirror.
func NewS3Mirror(client ObjectAPI, cfg Config, logger *slog.Logger) *S3Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.TrimPrefix(cfg.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: logger.With("component", "mirror", "bucket", cfg.Bucket),
	}
}

// Key returns the object key for a published name.
func (m *S3Mirror) Key(name string) string {
	return m.prefix + name + "/index.html"
}

// SitePublished uploads the rendered snapshot and removes the object of the
// name the project gave up, if the project still owns it.
func (m *S3Mirror) SitePublished(ctx context.Context, project *domain.Project, previous string) error {
	published, ok := site.FromProject(project)
	if !ok {
		return nil
	}
	document := site.Render(published.Content)

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(m.Key(published.Name)),
		Body:         strings.NewReader(document),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
		Metadata: map[string]string{
			ownerMetadata: published.ProjectID,
			"etag":       strings.Trim(site.ETag(document), `"`),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mirror site %s: %w", published.Name, err)
	}
	m.logger.Debug("site mirrored", "name", published.Name, "key", m.Key(published.Name))

	if previous != "" && previous != published.Name {
		return m.SiteRemoved(ctx, published.ProjectID, previous)
	}
	return nil
}

// SiteRemoved deletes the mirrored object for name when it was written for
// projectID. Hooks run after commit, so by the time this runs another
// project may have claimed name and mirrored its own snapshot; that object
// is left alone. A missing object is not an error.
func (m *S3Mirror) SiteRemoved(ctx context.Context, projectID, name string) error {
	key := m.Key(name)
	head, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to inspect mirrored site %s: %w", name, err)
	}
	if owner := head.Metadata[ownerMetadata]; owner != projectID {
		m.logger.Debug("mirrored site owned by another project, kept",
			"name", name,
			"project_id", projectID,
			"owner", owner,
		)
		return nil
	}

	_, err = m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove mirrored site %s: %w", name, err)
	}
	m.logger.Debug("mirrored site removed", "name", name, "project_id", projectID)
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
