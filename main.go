package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/fmpdb/pkg/adapters/datasource/filemaker"
	"github.com/ekaya-inc/fmpdb/pkg/builder"
	"github.com/ekaya-inc/fmpdb/pkg/config"
	"github.com/ekaya-inc/fmpdb/pkg/handlers"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	"github.com/ekaya-inc/fmpdb/pkg/mcp"
	"github.com/ekaya-inc/fmpdb/pkg/mcp/tools"
	"github.com/ekaya-inc/fmpdb/pkg/middleware"
	"github.com/ekaya-inc/fmpdb/pkg/schema"
	"github.com/ekaya-inc/fmpdb/pkg/services"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ds := cfg.Datasource
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("datasource_type", ds.Type),
		zap.String("host", ds.Host),
		zap.String("database", ds.Database),
		zap.String("transport", cfg.MCP.Transport),
	)

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:            ds.ConnectionTTLMinutes,
		MaxConnectionsPerUser: ds.MaxConnectionsPerUser,
		PoolMaxConns:          ds.PoolMaxConns,
		PoolMinConns:          ds.PoolMinConns,
	}, logger)
	defer connMgr.Close()

	factory := datasource.NewDatasourceAdapterFactory(connMgr)
	dsConfig := ds.ToMap()
	datasourceID := uuid.New()
	userID := ds.User
	if userID == "" {
		userID = "fmpdb"
	}

	d, err := factory.Dialect(ds.Type)
	if err != nil {
		return err
	}

	tester, err := factory.NewConnectionTester(ctx, ds.Type, dsConfig, datasourceID, userID)
	if err != nil {
		return fmt.Errorf("connect to %s datasource: %w", ds.Type, err)
	}
	defer tester.Close()
	if err := tester.TestConnection(ctx); err != nil {
		return fmt.Errorf("test %s connection: %w", ds.Type, err)
	}

	introspector, err := factory.NewSchemaIntrospector(ctx, ds.Type, dsConfig, datasourceID, userID)
	if err != nil {
		return err
	}
	defer introspector.Close()

	executor, err := factory.NewQueryExecutor(ctx, ds.Type, dsConfig, datasourceID, userID)
	if err != nil {
		return err
	}
	defer executor.Close()

	cache := schema.NewCache(introspector, logger)
	b := builder.New(d, cache, sqlbind.NewSubstitutor(cfg.Binding.RejectSuspiciousValues, logger), logger)

	mcpServer := mcp.NewServer("fmpdb", cfg.Version, logger)
	tools.RegisterTools(mcpServer.MCP(), &tools.Deps{
		Schema:  services.NewSchemaService(cache, logger),
		Records: services.NewRecordService(b, executor, logger),
		Dialect: d.Name(),
		Version: cfg.Version,
		Logger:  logger.Named("tools"),
	})

	if cfg.MCP.Transport == config.TransportStdio {
		return mcpServer.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	return serveHTTP(ctx, cfg, mcpServer, handlers.NewHealthHandler(cfg.Version, d.Name(), connMgr, tester, logger), logger)
}

func serveHTTP(ctx context.Context, cfg *config.Config, mcpServer *mcp.Server, health *handlers.HealthHandler, logger *zap.Logger) error {
	mux := http.NewServeMux()
	health.RegisterRoutes(mux)
	handlers.NewMCPHandler(mcpServer, logger.Named("mcp-http")).RegisterRoutes(mux, cfg.MCP.BasePath)

	srv := &http.Server{
		Addr:              cfg.MCP.Addr(),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting MCP HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("path", cfg.MCP.BasePath),
			zap.Bool("tls", cfg.MCP.TLSCertPath != ""),
		)
		var err error
		if cfg.MCP.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.MCP.TLSCertPath, cfg.MCP.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down MCP HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
