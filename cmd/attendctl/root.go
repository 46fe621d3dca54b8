package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/enrollment"
	"rollcall/internal/recognition"
	"rollcall/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "attendctl",
	Short: "Administer the attendance database",
	Long: `attendctl runs maintenance tasks against the attendance database and
enrollment directories configured for the API: schema migration, student
listing and removal, and spreadsheet export of daily reports.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds the collaborators a command needs. Close releases the database.
type env struct {
	cfg  config.App
	db   *store.DB
	repo *attendance.Repository
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &env{cfg: cfg, db: db, repo: attendance.NewRepository(db)}, nil
}

func (e *env) Close() error { return e.db.Close() }

func (e *env) service() (*attendance.Service, error) {
	artifacts, err := enrollment.New(e.cfg.ImagesDir, e.cfg.FingerprintsDir)
	if err != nil {
		return nil, err
	}
	recognizer, err := recognition.New(recognition.Options{
		Kind:           e.cfg.RecognitionProvider,
		Window:         e.cfg.RecognitionWindow,
		FaceServiceURL: e.cfg.FaceServiceURL,
		FaceSkip:       e.cfg.FaceSkip,
		Threshold:      e.cfg.FaceMatchThreshold,
	}, artifacts)
	if err != nil {
		return nil, err
	}
	return attendance.NewService(e.repo, artifacts, recognizer), nil
}
