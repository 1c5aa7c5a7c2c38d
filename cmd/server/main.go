package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/config"
	httpserver "github.com/isdlab/reimburse/internal/interfaces/http"
	"github.com/isdlab/reimburse/internal/report"
	"github.com/isdlab/reimburse/internal/repository"
	"github.com/isdlab/reimburse/internal/storage"
	"github.com/isdlab/reimburse/pkg/database"
	"github.com/isdlab/reimburse/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting reimbursement claim service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	claimRepo := repository.NewClaimRepository(db.DB, logger)
	itemRepo := repository.NewClaimItemRepository(db.DB, logger)

	receiptStore, err := storage.NewReceiptStore(cfg.Storage.ReceiptDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize receipt store", zap.Error(err))
	}

	// Generate the bundled template on first run so a fresh checkout works
	// without shipping a binary xlsx.
	if _, err := os.Stat(cfg.Report.TemplatePath); os.IsNotExist(err) {
		logger.Info("Report template missing, generating default",
			zap.String("path", cfg.Report.TemplatePath))
		if err := os.MkdirAll(filepath.Dir(cfg.Report.TemplatePath), 0755); err != nil {
			logger.Fatal("Failed to create template directory", zap.Error(err))
		}
		if err := report.WriteDefaultTemplate(cfg.Report.TemplatePath); err != nil {
			logger.Fatal("Failed to generate report template", zap.Error(err))
		}
	}

	filler, err := report.NewExcelFiller(cfg.Report.TemplatePath, report.ClaimantIdentity{
		FormNumber:    cfg.Report.FormNumber,
		Name:          cfg.Report.ClaimantName,
		StaffID:       cfg.Report.StaffID,
		Email:         cfg.Report.Email,
		ProjectNumber: cfg.Report.ProjectNumber,
		Supervisor:    cfg.Report.Supervisor,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize report filler", zap.Error(err))
	}

	assembler := report.NewAssembler(
		repository.NewReportSource(claimRepo, itemRepo),
		filler,
		logger,
	)

	handlers := httpserver.NewHandlers(db, claimRepo, itemRepo, receiptStore, assembler, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
