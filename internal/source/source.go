// Package source resolves an analysis input path into a streaming,
// transparently-decompressed byte source, whether the path names a local
// file or an object in Tencent COS.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"github.com/hprofstream/hprofstream/pkg/compression"
	"github.com/hprofstream/hprofstream/pkg/config"
)

// cosScheme prefixes a path naming an object in Tencent COS, as
// cos://bucket/key.
const cosScheme = "cos://"

// Open resolves path and returns a ReadCloser ready for Pipeline.Run: gzip
// or zstd input is unwrapped transparently, plain input is passed through.
// Grounded on storage.NewStorage's local-vs-COS dispatch, generalized from
// an object-storage abstraction (Upload/Download/Delete/...) down to the
// one operation the analyzer actually needs: opening an input stream once.
func Open(ctx context.Context, path string, cfg config.StorageConfig) (io.ReadCloser, error) {
	raw, err := openRaw(ctx, path, cfg)
	if err != nil {
		return nil, err
	}

	dec, err := compression.NewReader(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("source: %w", err)
	}
	return &streamSource{dec: dec, raw: raw}, nil
}

// streamSource closes both the decompressor and the underlying raw stream
// it wraps, since compression.NewReader's gzip/zstd readers don't own raw.
type streamSource struct {
	dec io.ReadCloser
	raw io.Closer
}

func (s *streamSource) Read(p []byte) (int, error) { return s.dec.Read(p) }

func (s *streamSource) Close() error {
	err := s.dec.Close()
	if rerr := s.raw.Close(); err == nil {
		err = rerr
	}
	return err
}

func openRaw(ctx context.Context, path string, cfg config.StorageConfig) (io.ReadCloser, error) {
	if bucket, key, ok := parseCOSPath(path); ok {
		return openCOS(ctx, bucket, key, cfg)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", path, err)
	}
	return f, nil
}

// parseCOSPath splits a cos://bucket/key path into its parts. Grounded on
// COSStorage's bucket/key addressing; this analyzer has no use for
// storage.Upload/Delete/GetURL, only Download, so only the dispatch prefix
// survives.
func parseCOSPath(path string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(path, cosScheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, cosScheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// openCOS downloads key from bucket over a one-off client built from cfg.
// Grounded directly on COSStorage.NewCOSStorage/Download.
func openCOS(ctx context.Context, bucket, key string, cfg config.StorageConfig) (io.ReadCloser, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("source: cos credentials are required to read %s%s/%s", cosScheme, bucket, key)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("source: cos region is required to read %s%s/%s", cosScheme, bucket, key)
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, bucket, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("source: parsing bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	resp, err := client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("source: downloading %s%s/%s: %w", cosScheme, bucket, key, err)
	}
	return resp.Body, nil
}
