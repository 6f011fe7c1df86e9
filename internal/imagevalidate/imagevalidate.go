// Package imagevalidate implements C11: validating that an image_from_url
// fragment's URL is well-formed, reachable, of an accepted content type,
// and within the configured size limit, then downloading and embedding it
// as a data URI so renders stay offline-safe.
package imagevalidate

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/worldline-go/klient"

	"github.com/parrisma/gofr-doc/internal/model"
)

var allowedContentTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Config controls the validator's limits.
type Config struct {
	MaxSizeBytes int64
	Timeout      time.Duration
	RequireHTTPS bool
}

// Validator checks and fetches remote images.
type Validator struct {
	cfg    Config
	client *klient.Client
}

func New(cfg Config) (*Validator, error) {
	client, err := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithLogger(slog.Default()),
		klient.WithDisableRetry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create image validation client: %w", err)
	}
	return &Validator{cfg: cfg, client: client}, nil
}

// CheckURL validates scheme, reachability, content type, and size via a
// HEAD request, without downloading the body. Implements
// validate.ImageChecker.
func (v *Validator) CheckURL(ctx context.Context, rawURL string) error {
	_, _, err := v.head(ctx, rawURL)
	return err
}

// FetchAsDataURI validates the URL (as CheckURL does) and then downloads
// the full body, returning it as a data: URI for offline-safe embedding.
func (v *Validator) FetchAsDataURI(ctx context.Context, rawURL string) (string, error) {
	contentType, _, err := v.head(ctx, rawURL)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewError(model.KindInvalidImageURL, "could not build request", "check the url", nil)
	}

	resp, err := v.client.HTTP.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.NewError(model.KindImageURLNotAccessible, fmt.Sprintf("image url returned status %d", resp.StatusCode), "check that the url is publicly reachable", nil)
	}

	limited := io.LimitReader(resp.Body, v.cfg.MaxSizeBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", model.NewError(model.KindImageValidationError, "failed reading image body", "retry", nil)
	}
	if int64(len(data)) > v.cfg.MaxSizeBytes {
		return "", model.NewError(model.KindImageTooLarge, "image exceeds the configured maximum size", "use a smaller image", nil)
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// head performs the scheme/reachability/content-type/size checks via a
// HEAD request and returns the content type and content length reported.
func (v *Validator) head(ctx context.Context, rawURL string) (string, int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", 0, model.NewError(model.KindInvalidImageURL, "url is not well-formed", "supply an absolute http(s) url", nil)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", 0, model.NewError(model.KindInvalidImageURL, "url scheme must be http or https", "supply an absolute http(s) url", nil)
	}
	if v.cfg.RequireHTTPS && parsed.Scheme != "https" {
		return "", 0, model.NewError(model.KindInvalidImageURL, "url must use https", "supply an https url", nil)
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", 0, model.NewError(model.KindInvalidImageURL, "could not build request", "check the url", nil)
	}

	resp, err := v.client.HTTP.Do(req)
	if err != nil {
		return "", 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, model.NewError(model.KindImageURLNotAccessible, fmt.Sprintf("image url returned status %d", resp.StatusCode), "check that the url is publicly reachable", nil)
	}

	contentType := firstToken(resp.Header.Get("Content-Type"))
	if contentType != "" && !allowedContentTypes[contentType] {
		return "", 0, model.NewError(model.KindInvalidImageContentType, fmt.Sprintf("content type %q is not an accepted image type", contentType), "use png, jpeg, gif, webp, or svg+xml", nil)
	}

	var size int64
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			size = n
			if size > v.cfg.MaxSizeBytes {
				return "", 0, model.NewError(model.KindImageTooLarge, "image exceeds the configured maximum size", "use a smaller image", nil)
			}
		}
	}

	return contentType, size, nil
}

func (v *Validator) timeout() time.Duration {
	if v.cfg.Timeout <= 0 {
		return 10 * time.Second
	}
	return v.cfg.Timeout
}

func classifyTransportError(err error) error {
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return model.NewError(model.KindImageURLTimeout, "image url request timed out", "retry or use a different host", nil)
	}
	return model.NewError(model.KindImageURLNotAccessible, err.Error(), "check that the url is publicly reachable", nil)
}

func firstToken(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}
