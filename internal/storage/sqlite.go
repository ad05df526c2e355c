package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

const DefaultDBFile = "pulsedna.sqlite3"

const errStoreNil = "template store is nil"

// TemplateStore persists exported template records so the registry can
// be repopulated across restarts. The engine never calls it from inside
// a buffer or registry lock; persistence is a boundary operation.
type TemplateStore struct {
	DB  *gorm.DB
	db  *sql.DB
	log *logger.Logger
}

// templateRow is the database representation of one exported record.
// Features are stored as their nested JSON record, matching the
// export/import shape exactly.
type templateRow struct {
	UserID              string `gorm:"primaryKey;type:varchar(64)"`
	Features            string `gorm:"type:text"`
	Signature           string `gorm:"index:idx_signature"`
	ConfidenceThreshold float64
	CreatedAt           time.Time
	SampleCount         int
}

func (templateRow) TableName() string { return "templates" }

// NewTemplateStore opens the store at the path given by PULSE_DB_PATH,
// falling back to the default file in the working directory.
func NewTemplateStore() (*TemplateStore, error) {
	dbPath := os.Getenv("PULSE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewTemplateStoreWithPath(dbPath)
}

// NewTemplateStoreWithPath opens (creating if needed) the SQLite store
// at dbPath and migrates its schema.
func NewTemplateStoreWithPath(dbPath string) (*TemplateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&templateRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &TemplateStore{DB: db, db: sqlDB, log: logger.GetLogger()}, nil
}

func (s *TemplateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts one template record. Re-enrollment overwrites the prior
// row for the same user.
func (s *TemplateStore) Save(ctx context.Context, t *model.BiometricTemplate) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}

	features, err := json.Marshal(t.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}

	row := templateRow{
		UserID:              t.UserID,
		Features:            string(features),
		Signature:           t.Signature,
		ConfidenceThreshold: t.ConfidenceThreshold,
		CreatedAt:           t.CreatedAt,
		SampleCount:         t.SampleCount,
	}
	if err := s.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("saving template for %s: %w", t.UserID, err)
	}
	return nil
}

// Delete removes the persisted record for a user. Deleting a missing
// row is not an error; the registry is the source of truth for
// not-found handling.
func (s *TemplateStore) Delete(ctx context.Context, userID string) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&templateRow{}).Error; err != nil {
		return fmt.Errorf("deleting template for %s: %w", userID, err)
	}
	return nil
}

// LoadAll reads every persisted record, decoding each back into a
// template. Rows whose feature payload no longer decodes are skipped
// with a warning so one corrupt row cannot block startup.
func (s *TemplateStore) LoadAll(ctx context.Context) ([]*model.BiometricTemplate, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var rows []templateRow
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	out := make([]*model.BiometricTemplate, 0, len(rows))
	for _, row := range rows {
		var features model.BiometricFeatures
		if err := json.Unmarshal([]byte(row.Features), &features); err != nil {
			s.log.Warnf("Skipping template %s: corrupt feature payload: %v", row.UserID, err)
			continue
		}
		out = append(out, &model.BiometricTemplate{
			UserID:              row.UserID,
			Features:            features,
			Signature:           row.Signature,
			ConfidenceThreshold: row.ConfidenceThreshold,
			CreatedAt:           row.CreatedAt,
			SampleCount:         row.SampleCount,
		})
	}
	return out, nil
}
