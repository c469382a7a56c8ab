// Package knowledge stores the training principles library.
package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew = "knowledge.service.new"
	opList       = "knowledge.list"
	opAdd        = "knowledge.add"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceConfig describes the dependencies of the knowledge base.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifiers.Provider
	Logger     *zap.Logger
}

// Service lists and adds training principles.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifiers.Provider
	logger     *zap.Logger
}

// Filter narrows a listing; empty fields match everything.
type Filter struct {
	Objective string
	Category  string
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// List returns principles ordered by objective, category and creation time.
func (s *Service) List(ctx context.Context, filter Filter) ([]Principle, error) {
	statement := s.db.WithContext(ctx).Model(&Principle{})
	if objective := strings.ToLower(strings.TrimSpace(filter.Objective)); objective != "" {
		statement = statement.Where("objective = ?", objective)
	}
	if category := strings.ToLower(strings.TrimSpace(filter.Category)); category != "" {
		statement = statement.Where("category = ?", category)
	}
	var principles []Principle
	if err := statement.
		Order("objective ASC").
		Order("category ASC").
		Order("created_at_s ASC").
		Order("id ASC").
		Find(&principles).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, serviceerror.New(opList, "query_failed", err)
	}
	return principles, nil
}

// Add validates and stores a principle.
func (s *Service) Add(ctx context.Context, input PrincipleInput) (Principle, error) {
	normalized, err := input.normalized()
	if err != nil {
		return Principle{}, err
	}
	principleID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAdd, "id_generation_failed", err)
		return Principle{}, serviceerror.New(opAdd, "id_generation_failed", err)
	}
	principle := Principle{
		ID:                principleID,
		Title:             normalized.Title,
		Content:           normalized.Content,
		Category:          normalized.Category,
		Objective:         normalized.Objective,
		Author:            normalized.Author,
		DecisionFramework: normalized.DecisionFramework,
		ContextFactors:    normalized.ContextFactors,
		Tags:              normalized.Tags,
		CreatedAtSeconds:  s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&principle).Error; err != nil {
		s.logError(opAdd, "insert_failed", err, zap.String("principle_id", principleID))
		return Principle{}, serviceerror.New(opAdd, "insert_failed", err)
	}
	return principle, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("knowledge service error", attrs...)
}
