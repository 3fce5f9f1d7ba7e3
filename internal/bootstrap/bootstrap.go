// Package bootstrap provides dependency initialization for the Tubely API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/maauso/tubely-api/internal/auth"
	"github.com/maauso/tubely-api/internal/config"
	"github.com/maauso/tubely-api/internal/ingest"
	"github.com/maauso/tubely-api/internal/media"
	"github.com/maauso/tubely-api/internal/storage"
	"github.com/maauso/tubely-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *ingest.Service
	Auth         *auth.JWT
	// Close releases the record store.
	Close func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	jwt, err := auth.NewJWT(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("create JWT validator: %w", err)
	}

	// Initialize local working storage and thumbnail assets
	work, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	assets, err := storage.NewLocalStorage(cfg.AssetsRoot)
	if err != nil {
		return nil, fmt.Errorf("create assets storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", work.Dir()),
		slog.String("assets_root", assets.Dir()),
	)

	// Initialize object storage
	objects, err := storage.NewS3Storage(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", objects.Bucket()),
		slog.String("region", objects.Region()),
	)

	repo, closeRepo, err := initRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media tools
	runner := media.NewExecRunner()
	prober := media.NewFFprobeProber(cfg.FFprobePath,
		media.WithProbeRunner(runner),
		media.WithProbeTimeout(cfg.ProbeTimeout),
	)
	transcoder := media.NewFFmpegTranscoder(cfg.FFmpegPath,
		media.WithTranscodeRunner(runner),
		media.WithTranscodeTimeout(cfg.TranscodeTimeout),
	)

	svc := ingest.NewService(ingest.Dependencies{
		Videos:     repo,
		Prober:     prober,
		Transcoder: transcoder,
		Workspaces: work,
		Objects:    objects,
		Assets:     assets,
		Logger:     logger,
	},
		ingest.WithUploadTimeout(cfg.UploadTimeout),
		ingest.WithSignedURLTTL(cfg.SignedURLTTL),
		ingest.WithMaxVideoBytes(cfg.MaxVideoBytes),
		ingest.WithMaxThumbnailBytes(cfg.MaxThumbnailBytes),
		ingest.WithMaxConcurrentUploads(cfg.MaxConcurrentUploads),
	)

	return &Dependencies{
		VideoService: svc,
		Auth:         jwt,
		Close:        closeRepo,
	}, nil
}

// initRepository creates the record store selected by DB_DRIVER.
func initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (video.Repository, func() error, error) {
	noop := func() error { return nil }

	switch driver := strings.ToLower(cfg.DBDriver); driver {
	case config.DBDriverMemory:
		logger.Warn("using in-memory record store; data is lost on restart")
		return video.NewMemoryRepository(), noop, nil

	case config.DBDriverSQLite:
		repo, err := video.NewSQLiteRepository(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create SQLite repository: %w", err)
		}
		logger.Info("record store configured", slog.String("driver", driver), slog.String("path", cfg.DBPath))
		return repo, repo.Close, nil

	case config.DBDriverPostgres:
		repo, err := video.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create Postgres repository: %w", err)
		}
		logger.Info("record store configured", slog.String("driver", driver))
		return repo, repo.Close, nil

	case config.DBDriverDynamoDB:
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.S3Region, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			return nil, nil, fmt.Errorf("create DynamoDB client: %w", err)
		}
		repo := video.NewDynamoDBRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
		logger.Info("record store configured", slog.String("driver", driver), slog.String("table", cfg.DynamoDBTable))
		return repo, noop, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnsupportedDBDriver, cfg.DBDriver)
	}
}
