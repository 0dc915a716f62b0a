package files

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/haral/audit-reports/internal/resilience"
)

// GCSStorage keeps files in a Cloud Storage bucket. Resolve downloads
// objects into a local cache directory so renderers can open them by path.
type GCSStorage struct {
	client   *storage.Client
	bucket   string
	cacheDir string
	retry    resilience.RetryConfig
}

// NewGCS creates a bucket-backed storage. An empty credentialsFile uses
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile, cacheDir string) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "files: create gcs client")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "files: create cache dir %s", cacheDir)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("files", "gcs")
	return &GCSStorage{client: client, bucket: bucket, cacheDir: cacheDir, retry: retry}, nil
}

func (s *GCSStorage) Put(ctx context.Context, key string, r io.Reader) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentType(key)
	if _, err := io.Copy(w, r); err != nil {
		w.Close() //nolint:errcheck
		return eris.Wrapf(err, "files: upload %s", key)
	}
	return eris.Wrapf(w.Close(), "files: finalize %s", key)
}

func (s *GCSStorage) Resolve(ctx context.Context, key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	local := filepath.Join(s.cacheDir, filepath.FromSlash(key))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
		if err != nil {
			return err
		}
		defer rc.Close() //nolint:errcheck
		return writeAtomic(local, rc)
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", eris.Wrapf(ErrNotFound, "%s", key)
	}
	if err != nil {
		return "", eris.Wrapf(err, "files: download %s", key)
	}
	zap.L().Debug("files: cached object", zap.String("key", key), zap.String("path", local))
	return local, nil
}

// Delete removes the object and its cached copy. Missing objects are not an error.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	os.Remove(filepath.Join(s.cacheDir, filepath.FromSlash(key))) //nolint:errcheck

	err = s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return eris.Wrapf(err, "files: delete %s", key)
	}
	return nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*GCSStorage)(nil)
)
