package mockview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/mockview/pkg/archive"
	"github.com/harunnryd/mockview/pkg/configutil"
	"github.com/harunnryd/mockview/pkg/events"
	"github.com/harunnryd/mockview/pkg/report"
)

// ReportStore archives reports and reads them back.
type ReportStore interface {
	report.Sink
	Load(ctx context.Context, id string) (report.Report, error)
}

type fileArchiveSettings struct {
	Dir string `mapstructure:"dir"`
}

type s3ArchiveSettings struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

type postgresArchiveSettings struct {
	DSN string `mapstructure:"dsn"`
}

type amqpEventSettings struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// OpenArchive builds the configured report store. It returns nil when
// archiving is disabled.
func OpenArchive(ctx context.Context, cfg VendorConfig) (ReportStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "file":
		if err := configutil.ValidateSettings("archive", cfg.Provider, cfg.Settings, configutil.Schema{Required: []string{"dir"}}); err != nil {
			return nil, err
		}
		var s fileArchiveSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("archive.settings: %w", err)
		}
		return archive.NewFileStore(s.Dir)
	case "s3":
		if err := configutil.ValidateSettings("archive", cfg.Provider, cfg.Settings, configutil.Schema{
			Required: []string{"bucket"},
			Optional: []string{"prefix", "region", "endpoint", "access_key", "secret_key", "path_style"},
		}); err != nil {
			return nil, err
		}
		var s s3ArchiveSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("archive.settings: %w", err)
		}
		return archive.NewS3Store(ctx, archive.S3Config{
			Bucket:    s.Bucket,
			Prefix:    s.Prefix,
			Region:    s.Region,
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			PathStyle: s.PathStyle,
		})
	case "postgres":
		if err := configutil.ValidateSettings("archive", cfg.Provider, cfg.Settings, configutil.Schema{Required: []string{"dsn"}}); err != nil {
			return nil, err
		}
		var s postgresArchiveSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("archive.settings: %w", err)
		}
		return archive.OpenPostgres(ctx, s.DSN)
	default:
		return nil, fmt.Errorf("archive provider not supported: %s", cfg.Provider)
	}
}

// OpenEvents dials the configured event publisher. It returns nil when
// events are disabled.
func OpenEvents(cfg VendorConfig, logger *slog.Logger) (*events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "amqp":
		if err := configutil.ValidateSettings("events", cfg.Provider, cfg.Settings, configutil.Schema{
			Required: []string{"url"},
			Optional: []string{"exchange"},
		}); err != nil {
			return nil, err
		}
		var s amqpEventSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("events.settings: %w", err)
		}
		return events.Dial(events.Config{URL: s.URL, Exchange: s.Exchange}, logger)
	default:
		return nil, fmt.Errorf("events provider not supported: %s", cfg.Provider)
	}
}
