// Package proofarchive keeps a durable copy of proof attachments. Chat
// platform attachment URLs expire; the copy does not.
package proofarchive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps one downloaded attachment.
const DefaultMaxBytes = 25 << 20

// ErrTooLarge is returned when an attachment exceeds the size cap.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// Sink stores archived objects.
type Sink interface {
	// Put stores body under key and returns where it ended up.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Archiver downloads attachments and hands them to a Sink.
type Archiver struct {
	sink     Sink
	http     *http.Client
	maxBytes int64
	newID    func() string
	logger   *zap.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Archiver) { a.http = c }
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(a *Archiver) { a.maxBytes = n }
}

// New creates an Archiver writing to sink.
func New(sink Sink, logger *zap.Logger, opts ...Option) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archiver{
		sink:     sink,
		http:     &http.Client{Timeout: time.Minute},
		maxBytes: DefaultMaxBytes,
		newID:    uuid.NewString,
		logger:   logger.With(zap.String("component", "proofarchive")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive copies the attachment at rawURL to proofs/<txID>/<id><ext> and
// returns the stored location.
func (a *Archiver) Archive(ctx context.Context, txID int64, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid attachment url: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download attachment: unexpected status %s", resp.Status)
	}
	if resp.ContentLength > a.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	if n > a.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, a.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	key := fmt.Sprintf("proofs/%d/%s%s", txID, a.newID(), extension(rawURL, contentType))
	location, err := a.sink.Put(ctx, key, buf.Bytes(), contentType)
	if err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}

	a.logger.Debug("attachment archived",
		zap.Int64("transaction_id", txID),
		zap.Int64("bytes", n),
		zap.String("location", location))
	return location, nil
}

// extension takes the file extension from the URL path, falling back to the
// content type.
func extension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
			return ext
		}
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return ""
}
