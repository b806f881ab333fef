package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the backup manifest.
type ManifestEntry struct {
	Key           string `json:"key"`
	CreatedAt     string `json:"created_at"`
	Bookings      int    `json:"bookings"`
	ReminderTasks int    `json:"reminder_tasks"`
	Bytes         int    `json:"bytes"`
}

// Archive writes backup objects under a bucket prefix.
type Archive struct {
	bucket string
	prefix string
	s3     S3API
	logger *logging.Logger
}

// NewArchive creates an archive. With an empty bucket every write fails with
// ErrArchiveDisabled.
func NewArchive(client S3API, bucket, prefix string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Archive{bucket: bucket, prefix: prefix, s3: client, logger: logger}
}

// ErrArchiveDisabled is returned when no backup bucket is configured.
var ErrArchiveDisabled = errors.New("maintenance: backup bucket not configured")

// Enabled reports whether a bucket and client are configured.
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3 != nil
}

// Key returns the full object key for name.
func (a *Archive) Key(name string) string {
	return a.prefix + name
}

// Put stores data as a JSON object under the prefix and returns the full key.
func (a *Archive) Put(ctx context.Context, name string, data []byte) (string, error) {
	if !a.Enabled() {
		return "", ErrArchiveDisabled
	}
	key := a.Key(name)
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("maintenance: s3 put %s: %w", key, err)
	}
	return key, nil
}

// AppendManifest adds a JSONL line to manifest.jsonl. S3 has no append, so
// the manifest is read, extended and written back.
func (a *Archive) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !a.Enabled() {
		return ErrArchiveDisabled
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("maintenance: marshal manifest entry: %w", err)
	}

	key := a.Key("manifest.jsonl")
	var buf bytes.Buffer
	out, err := a.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		existing, readErr := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if readErr != nil {
			return fmt.Errorf("maintenance: read manifest: %w", readErr)
		}
		buf.Write(existing)
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	case isNotFound(err):
		a.logger.Debug("backup manifest not found, creating", "key", key)
	default:
		return fmt.Errorf("maintenance: get manifest: %w", err)
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("maintenance: put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
