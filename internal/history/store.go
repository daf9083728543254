// Package history persists analysis and selection outcomes to a local
// sqlite database so past sessions stay reviewable.
package history

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/screenwise/screenwise/automation"
	"github.com/screenwise/screenwise/types"
)

// AnalysisRecord is one full-analysis outcome.
type AnalysisRecord struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"index"`
	HasQuestion  bool
	QuestionText string
	QuestionType string
	ModelUsed    string
	Attempts     int
	ErrorCode    string
	CreatedAt    time.Time
}

// SelectionRecord is one answer-selection outcome.
type SelectionRecord struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"index"`
	Kind         string
	QuestionText string
	OptionText   string
	Confidence   float64
	Attempts     int
	Detail       string
	CreatedAt    time.Time
}

// Store implements automation.Recorder on sqlite. Recording is
// best-effort: failures are logged and never surface to the loop.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing gorm handle; tests pass an in-memory database.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&AnalysisRecord{}, &SelectionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history")),
	}, nil
}

// RecordAnalysis implements automation.Recorder.
func (s *Store) RecordAnalysis(sessionID string, result *types.AnalysisResult) {
	rec := AnalysisRecord{
		SessionID:   sessionID,
		HasQuestion: result.HasQuestion,
		ModelUsed:   result.ModelUsed,
		Attempts:    result.Attempts,
	}
	if result.Err != nil {
		rec.ErrorCode = string(result.Err.Code)
	}
	if len(result.Questions) > 0 {
		rec.QuestionText = result.Questions[0].QuestionText
		rec.QuestionType = string(result.Questions[0].Type)
	}

	if err := s.db.Create(&rec).Error; err != nil {
		s.logger.Warn("record analysis failed", zap.Error(err))
	}
}

// RecordSelection implements automation.Recorder.
func (s *Store) RecordSelection(sessionID string, report automation.Report) {
	rec := SelectionRecord{
		SessionID:    sessionID,
		Kind:         string(report.Kind),
		QuestionText: report.QuestionText,
		OptionText:   report.OptionText,
		Confidence:   report.Confidence,
		Attempts:     report.Attempts,
		Detail:       report.Detail,
	}

	if err := s.db.Create(&rec).Error; err != nil {
		s.logger.Warn("record selection failed", zap.Error(err))
	}
}

// RecentAnalyses returns the newest analysis records for a session, most
// recent first. Empty sessionID returns records across all sessions.
func (s *Store) RecentAnalyses(sessionID string, limit int) ([]AnalysisRecord, error) {
	var records []AnalysisRecord
	q := s.db.Order("id desc").Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	return records, nil
}

// RecentSelections returns the newest selection records for a session,
// most recent first. Empty sessionID returns records across all sessions.
func (s *Store) RecentSelections(sessionID string, limit int) ([]SelectionRecord, error) {
	var records []SelectionRecord
	q := s.db.Order("id desc").Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	return records, nil
}

// Close releases the underlying sqlite handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
