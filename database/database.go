// Copyright 2025 Edulith Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/edulith/sigil/database/models"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Config describes the database configuration
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	DataDir      string
}

// Database combines the relational certificate store with the receipt
// blob store. The relational store is the single source of truth for
// record status; the blob store only archives raw ledger receipts for
// diagnostics.
type Database struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	db           *gorm.DB
	receipts     *badger.DB
	dataDir      string
}

// New creates a new database instance with optional persistence using
// the provided data directory. An empty data directory uses in-memory
// storage, useful for testing.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	d := &Database{
		logger:       cfg.Logger,
		promRegistry: cfg.PromRegistry,
		dataDir:      cfg.DataDir,
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := d.openMetadata(); err != nil {
		return nil, err
	}
	if err := d.openReceipts(); err != nil {
		return nil, err
	}
	// Create table schemas
	for _, model := range models.MigrateModels {
		d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := d.db.AutoMigrate(model); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (d *Database) openMetadata() error {
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	var metadataDb *gorm.DB
	var err error
	if d.dataDir == "" {
		// cache=shared allows multiple connections to share the same in-memory database
		metadataDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			gormCfg,
		)
		if err != nil {
			return err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		metadataDbPath := filepath.Join(d.dataDir, "metadata.sqlite")
		// WAL journal mode, disable sync on write
		metadataConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		metadataDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", metadataDbPath, metadataConnOpts),
			),
			gormCfg,
		)
		if err != nil {
			return err
		}
	}
	// Configure tracing for GORM
	if err := metadataDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	d.db = metadataDb
	return nil
}

func (d *Database) openReceipts() error {
	var badgerOpts badger.Options
	if d.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithLogger(newBadgerLogger(d.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
	} else {
		receiptDir := filepath.Join(d.dataDir, "receipts")
		badgerOpts = badger.DefaultOptions(receiptDir).
			WithLogger(newBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING)
	}
	receiptsDb, err := badger.Open(badgerOpts)
	if err != nil {
		return fmt.Errorf("failed to open receipt store: %w", err)
	}
	d.receipts = receiptsDb
	return nil
}

// DB returns the underlying GORM database handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Receipts returns the underlying receipt blob store handle
func (d *Database) Receipts() *badger.DB {
	return d.receipts
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction() *gorm.DB {
	return d.db.Begin()
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.db != nil {
		if sqlDb, dbErr := d.db.DB(); dbErr != nil {
			err = errors.Join(err, dbErr)
		} else {
			err = errors.Join(err, sqlDb.Close())
		}
	}
	if d.receipts != nil {
		err = errors.Join(err, d.receipts.Close())
	}
	return err
}

// badgerLogger is a wrapper type to give our logger the expected interface
type badgerLogger struct {
	*slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{Logger: logger}
}

func (b *badgerLogger) Infof(msg string, args ...any) {
	b.Info(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Warningf(msg string, args ...any) {
	b.Warn(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Debugf(msg string, args ...any) {
	b.Debug(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Errorf(msg string, args ...any) {
	b.Error(fmt.Sprintf(msg, args...))
}
