package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/config"
	"github.com/haral/audit-reports/internal/files"
	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/render"
	"github.com/haral/audit-reports/internal/service"
	"github.com/haral/audit-reports/internal/store"
)

// appEnv holds the store, file storage and service used by every command.
type appEnv struct {
	Store   store.Store
	Files   files.Storage
	Service *service.Service

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initApp validates the config for mode ("cli" or "serve"), opens and
// migrates the store and wires the service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.closers = append(env.closers, func() { _ = st.Close() })

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fs, closeFiles, err := initFiles(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Files = fs
	env.closers = append(env.closers, closeFiles)

	engine := metrics.NewEngine(cfg.Rates)
	renderer := render.New(engine, fs, render.Options{
		Brand:      brandFromConfig(cfg.Render.Brand),
		MaxImagePx: cfg.Render.MaxImagePx,
	})

	env.Service = service.New(st, engine, renderer, fs, service.Options{
		OutputDir:             cfg.Render.OutputDir,
		AutoRender:            cfg.Render.AutoRenderOnComplete,
		CascadeCustomerDelete: cfg.Store.CustomerDelete == config.DeleteCascade,
		MaxUploadBytes:        int64(cfg.Files.MaxUploadMB) << 20,
	})
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "audit-reports.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initFiles(ctx context.Context) (files.Storage, func(), error) {
	switch cfg.Files.Driver {
	case "local", "":
		root := cfg.Files.Root
		if root == "" {
			root = "uploads"
		}
		fs, err := files.NewLocal(root)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "gcs":
		fs, err := files.NewGCS(ctx, cfg.Files.GCSBucket, cfg.Files.GCSCredentialsFile, cfg.Files.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("file storage using gcs bucket", zap.String("bucket", cfg.Files.GCSBucket))
		return fs, func() { _ = fs.Close() }, nil
	default:
		return nil, nil, eris.Errorf("unsupported files driver: %s", cfg.Files.Driver)
	}
}

func brandFromConfig(b config.BrandConfig) render.Brand {
	return render.Brand{
		Name:     b.Name,
		Tagline:  b.Tagline,
		Claim:    b.Claim,
		Address:  b.Address,
		Contact:  b.Contact,
		LogoPath: b.LogoPath,
	}
}
