// Package objectstore wraps the optional S3-compatible blob store used for
// audited raw GeoTIFF uploads and NetCDF artifact retrieval. When no
// provider is configured, callers fall back to a local filesystem
// directory instead of failing.
package objectstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Store is the object-store abstraction used by the ingestion worker for
// audit uploads. A Store constructed with Configured() false falls back to
// the local directory given at construction time.
type Store struct {
	s3        *s3.S3
	uploader  *s3manager.Uploader
	bucket    string
	localDir  string
	configured bool
}

// New builds a Store. If provider/bucket are empty, the returned Store is
// not configured and all operations fall back to localDir.
func New(provider, endpoint, bucket, region, accessKeyID, secretKey, localDir string) (*Store, error) {
	st := &Store{bucket: bucket, localDir: localDir}
	if provider == "" || bucket == "" {
		return st, nil
	}

	cfg := &aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKeyID, secretKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: create session: %w", err)
	}

	st.s3 = s3.New(sess)
	st.uploader = s3manager.NewUploader(sess)
	st.configured = true
	return st, nil
}

// Configured reports whether a real S3-compatible backend is wired up.
func (s *Store) Configured() bool {
	return s != nil && s.configured
}

// Upload writes data under key, using S3 when configured, else the local
// fallback directory.
func (s *Store) Upload(key string, data []byte) (bucketPath string, err error) {
	if s.Configured() {
		_, err := s.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return "", fmt.Errorf("objectstore: upload %s: %w", key, err)
		}
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}

	path := filepath.Join(s.localDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("objectstore: write %s: %w", key, err)
	}
	return path, nil
}

// Download fetches the object at key into memory.
func (s *Store) Download(key string) ([]byte, error) {
	if s.Configured() {
		out, err := s.s3.GetObject(&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: download %s: %w", key, err)
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}

	path := filepath.Join(s.localDir, key)
	return os.ReadFile(path)
}

// PresignedURL returns a temporary download URL, or "" when the store is not
// backed by a real S3-compatible provider (the local fallback has no URL).
func (s *Store) PresignedURL(key string, ttl time.Duration) (string, error) {
	if !s.Configured() {
		return "", nil
	}
	req, _ := s.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return req.Presign(ttl)
}
