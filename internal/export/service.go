package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dietops/backend/internal/blob"
	"github.com/dietops/backend/internal/serviceerror"
	"go.uber.org/zap"
)

// Supported output formats.
const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

const (
	opExport          = "export.render"
	defaultPresignTTL = 15 * time.Minute
	fallbackFilename  = "nutrition-plan"
)

// ErrUnsupportedFormat indicates an unknown export format.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Artifact is a rendered document. When blob storage is configured the payload is
// uploaded and URL points at a presigned download link.
type Artifact struct {
	Format      string `json:"format"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Key         string `json:"key,omitempty"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"-"`
}

// Uploaded reports whether the artifact lives in blob storage.
func (a Artifact) Uploaded() bool {
	return a.URL != ""
}

// ServiceConfig describes the dependencies of the export service.
type ServiceConfig struct {
	Store      blob.Store
	PresignTTL time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service renders snapshots and optionally stores the result.
type Service struct {
	store      blob.Store
	presignTTL time.Duration
	clock      func() time.Time
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: cfg.Store, presignTTL: ttl, clock: clock, logger: logger}
}

// Export renders the snapshot in the requested format for the owner's plan.
func (s *Service) Export(ctx context.Context, ownerID, planID string, snapshot Snapshot, format string) (Artifact, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatPDF
	}

	report := BuildReport(snapshot)
	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatPDF:
		data, err = RenderPDF(report)
		contentType = "application/pdf"
	case FormatCSV:
		data, err = RenderCSV(report)
		contentType = "text/csv"
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		s.logError("render_failed", err, zap.String("plan_id", planID), zap.String("format", format))
		return Artifact{}, serviceerror.New(opExport, "render_failed", err)
	}

	artifact := Artifact{
		Format:      format,
		Filename:    SanitizeFilename(snapshot.PlanName) + "." + format,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}
	if s.store == nil {
		return artifact, nil
	}

	key := fmt.Sprintf("exports/%s/%s/%d.%s", ownerID, planID, s.clock().UTC().Unix(), format)
	size, err := s.store.PutObject(ctx, key, data, contentType)
	if err != nil {
		s.logError("upload_failed", err, zap.String("plan_id", planID), zap.String("key", key))
		return Artifact{}, serviceerror.New(opExport, "upload_failed", err)
	}
	url, err := s.store.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		s.logError("presign_failed", err, zap.String("plan_id", planID), zap.String("key", key))
		return Artifact{}, serviceerror.New(opExport, "presign_failed", err)
	}
	artifact.Key = key
	artifact.URL = url
	artifact.Size = size
	return artifact, nil
}

// SanitizeFilename lowercases the name and collapses anything but letters and digits into dashes.
func SanitizeFilename(name string) string {
	var builder strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	if builder.Len() == 0 {
		return fallbackFilename
	}
	return builder.String()
}

func (s *Service) logError(reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", opExport),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("export service error", attrs...)
}
