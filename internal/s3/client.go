package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"article-video-gen/internal"
)

type Client interface {
	PutBytes(ctx context.Context, key string, b []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	ReadJSON(ctx context.Context, key string, out any) (bool, error)
	WriteJSON(ctx context.Context, key string, v any) error

	// Store uploads a generated artifact under the videos prefix and returns
	// its public URL.
	Store(ctx context.Context, data []byte, name string) (string, error)
	PublicURL(key string) string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *string
	ETag         string
}

type s3Client struct {
	bucket    string
	prefix    string
	publicURL urlBuilder
	api       *awss3.Client
	upl       *manager.Uploader
}

func New(cfg internal.Config) (Client, error) {
	endpoint := cfg.S3Endpoint
	forcePathStyle := true
	if strings.Contains(endpoint, "amazonaws.com") {
		forcePathStyle = false
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &s3Client{
		bucket: cfg.S3Bucket,
		prefix: cfg.VideosPrefix,
		publicURL: urlBuilder{
			publicBase: cfg.S3PublicURL,
			endpoint:   endpoint,
			bucket:     cfg.S3Bucket,
			region:     cfg.S3Region,
			pathStyle:  forcePathStyle,
		},
		api: client,
		upl: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 8 * 1024 * 1024
		}),
	}, nil
}

func (c *s3Client) PutBytes(ctx context.Context, key string, b []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	return err
}

func (c *s3Client) GetBytes(ctx context.Context, key string) ([]byte, string, error) {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", errNotExist
		}
		return nil, "", err
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	return b, aws.ToString(out.ContentType), nil
}

func (c *s3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &c.bucket, Key: &key})
	return err
}

func (c *s3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	p := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{Bucket: &c.bucket, Prefix: &prefix})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			lm := ""
			if obj.LastModified != nil {
				lm = obj.LastModified.Format("2006-01-02T15:04:05Z07:00")
			}
			out = append(out, ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size), LastModified: &lm, ETag: aws.ToString(obj.ETag)})
		}
	}
	return out, nil
}

func (c *s3Client) ReadJSON(ctx context.Context, key string, out any) (bool, error) {
	b, _, err := c.GetBytes(ctx, key)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

func (c *s3Client) WriteJSON(ctx context.Context, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return c.PutBytes(ctx, key, b, "application/json")
}

func (c *s3Client) Store(ctx context.Context, data []byte, name string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("refusing to store empty object")
	}
	key := c.prefix + name
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "video/mp4"
	}

	// manager.Uploader switches to multipart for large renders
	_, err := c.upl.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return c.PublicURL(key), nil
}

func (c *s3Client) PublicURL(key string) string {
	return c.publicURL.build(key)
}

// urlBuilder derives public object URLs for path-style (minio, R2, spaces)
// and virtual-hosted (AWS) endpoints.
type urlBuilder struct {
	publicBase string
	endpoint   string
	bucket     string
	region     string
	pathStyle  bool
}

func (b urlBuilder) build(key string) string {
	key = strings.TrimPrefix(key, "/")
	if b.publicBase != "" {
		return strings.TrimRight(b.publicBase, "/") + "/" + escapeKey(key)
	}
	if !b.pathStyle {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, escapeKey(key))
	}
	u, err := url.Parse(b.endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimRight(b.endpoint, "/") + "/" + b.bucket + "/" + escapeKey(key)
	}
	return u.Scheme + "://" + u.Host + "/" + b.bucket + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var errNotExist = errors.New("not exist")

func IsNotExist(err error) bool {
	return errors.Is(err, errNotExist)
}
