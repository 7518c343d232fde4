package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/xxxsen/storeaudit/internal/config"
)

// md5MetaKey is the user metadata entry consulted when the ETag is not an MD5.
const md5MetaKey = "md5"

// s3API is the part of *s3.Client used by the backend.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Client struct {
	client    s3API
	bucket    string
	publicURL string
}

// NewS3Client builds a storage backend backed by AWS S3 (or compatible) based on config.
func NewS3Client(ctx context.Context, cfg appconfig.S3Config) (Backend, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Host)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &s3Client{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicBaseURL(cfg, endpoint),
	}, nil
}

func (c *s3Client) List(ctx context.Context, prefix string) (*Listing, error) {
	prefix = FolderPrefix(prefix)
	out := &Listing{}
	var continuation *string

	for {
		resp, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, wrapS3Error("List", prefix, err)
		}

		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			// folder placeholder objects created by consoles
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out.Files = append(out.Files, NewObjectRef(key))
		}
		for _, cp := range resp.CommonPrefixes {
			if p := aws.ToString(cp.Prefix); p != "" {
				out.Subfolders = append(out.Subfolders, p)
			}
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		continuation = resp.NextContinuationToken
	}

	return out, nil
}

func (c *s3Client) Metadata(ctx context.Context, ref ObjectRef) (ObjectMeta, error) {
	res, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		return ObjectMeta{}, wrapS3Error("Head", ref.Path, err)
	}

	meta := ObjectMeta{
		Hash: contentHash(aws.ToString(res.ETag), res.Metadata),
		Size: aws.ToInt64(res.ContentLength),
	}
	if res.LastModified != nil {
		meta.TimeCreated = res.LastModified.UTC()
	}
	return meta, nil
}

func (c *s3Client) AccessURL(ctx context.Context, ref ObjectRef) (string, error) {
	if ref.Path == "" {
		return "", &ObjectError{Op: "AccessURL", Key: ref.Path, Err: ErrNotFound}
	}
	return c.publicURL + "/" + escapeKey(ref.Path), nil
}

func (c *s3Client) Delete(ctx context.Context, ref ObjectRef) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		return wrapS3Error("Delete", ref.Path, err)
	}
	return nil
}

// contentHash returns the lower-case hex MD5 of the object, or "" when the
// backend did not record one. Multipart ETags ("<md5>-<parts>") are digests of
// the part digests and cannot be compared across uploads.
func contentHash(etag string, userMeta map[string]string) string {
	etag = strings.Trim(strings.TrimSpace(etag), `"`)
	if etag != "" && !strings.Contains(etag, "-") && isMD5Hex(etag) {
		return strings.ToLower(etag)
	}
	for k, v := range userMeta {
		if strings.EqualFold(k, md5MetaKey) && isMD5Hex(strings.TrimSpace(v)) {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}

func isMD5Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func wrapS3Error(op, key string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return &ObjectError{Op: op, Key: key, Err: ErrNotFound}
		case http.StatusForbidden:
			return &ObjectError{Op: op, Key: key, Err: ErrAccessDenied}
		}
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &ObjectError{Op: op, Key: key, Err: ErrBucketNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &ObjectError{Op: op, Key: key, Err: ErrNotFound}
	}

	return &ObjectError{Op: op, Key: key, Err: err}
}

func publicBaseURL(cfg appconfig.S3Config, endpoint string) string {
	if base := strings.TrimSpace(cfg.PublicBaseURL); base != "" {
		return strings.TrimSuffix(base, "/")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(endpoint, "/") + "/" + cfg.Bucket
	}
	if cfg.ForcePathStyle {
		return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, cfg.Bucket)
	}
	return fmt.Sprintf("%s://%s.%s", u.Scheme, cfg.Bucket, u.Host)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func normalizeEndpoint(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}

	if strings.Contains(host, "://") {
		return host
	}

	u := url.URL{
		Scheme: "https",
		Host:   host,
	}
	return u.String()
}
