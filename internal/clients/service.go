package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dietops/backend/internal/bulk"
	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew  = "clients.service.new"
	opList        = "clients.list"
	opGet         = "clients.get"
	opCreate      = "clients.create"
	opAssignCoach = "clients.assign_coach"
	opAssignGym   = "clients.assign_gym"
	opDeleteMany  = "clients.delete_many"
	opCount       = "clients.count"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the client roster.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifiers.Provider
	Logger     *zap.Logger
}

// Service maintains the athletes and gyms coached on the platform.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifiers.Provider
	logger     *zap.Logger
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
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// List returns the clients matching the filter ordered by name.
func (s *Service) List(ctx context.Context, filter Filter) ([]Client, error) {
	statement, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	var results []Client
	if err := statement.Order("name ASC").Order("id ASC").Find(&results).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("type", filter.Type))
		return nil, serviceerror.New(opList, "query_failed", err)
	}
	return results, nil
}

// Count returns the number of clients matching the filter.
func (s *Service) Count(ctx context.Context, filter Filter) (int64, error) {
	statement, err := s.filtered(ctx, filter)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := statement.Count(&total).Error; err != nil {
		s.logError(opCount, "query_failed", err, zap.String("type", filter.Type))
		return 0, serviceerror.New(opCount, "query_failed", err)
	}
	return total, nil
}

// Get returns a single client by identifier.
func (s *Service) Get(ctx context.Context, clientID string) (Client, error) {
	var client Client
	err := s.db.WithContext(ctx).Where("id = ?", clientID).Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Client{}, ErrClientNotFound
	}
	if err != nil {
		s.logError(opGet, "select_failed", err, zap.String("client_id", clientID))
		return Client{}, serviceerror.New(opGet, "select_failed", err)
	}
	return client, nil
}

// ClientName resolves the display name of a roster entry for plan assignment.
func (s *Service) ClientName(ctx context.Context, clientID string) (string, bool, error) {
	client, err := s.Get(ctx, clientID)
	if errors.Is(err, ErrClientNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return client.Name, true, nil
}

// Create validates and stores a new client.
func (s *Service) Create(ctx context.Context, input ClientInput) (Client, error) {
	normalized, err := input.normalized()
	if err != nil {
		return Client{}, err
	}
	clientID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Client{}, serviceerror.New(opCreate, "id_generation_failed", err)
	}
	now := s.clock().UTC().Unix()
	client := Client{
		ID:               clientID,
		Type:             normalized.Type,
		Name:             normalized.Name,
		Email:            normalized.Email,
		Status:           normalized.Status,
		CoachID:          normalized.CoachID,
		Notes:            normalized.Notes,
		Details:          normalized.Details,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("client_id", clientID))
		return Client{}, serviceerror.New(opCreate, "insert_failed", err)
	}
	return client, nil
}

// AssignCoach sets the coach responsible for a client. An empty coach id unassigns it.
func (s *Service) AssignCoach(ctx context.Context, clientID, coachID string) (Client, error) {
	coachID = strings.TrimSpace(coachID)
	return s.update(ctx, opAssignCoach, clientID, func(tx *gorm.DB, client *Client) error {
		client.CoachID = coachID
		return nil
	})
}

// AssignGym attaches an athlete to a gym. An empty gym id detaches it.
func (s *Service) AssignGym(ctx context.Context, athleteID, gymID string) (Client, error) {
	gymID = strings.TrimSpace(gymID)
	return s.update(ctx, opAssignGym, athleteID, func(tx *gorm.DB, client *Client) error {
		if client.Type != TypeAthlete {
			return fmt.Errorf("%w: only athletes join gyms", ErrInvalidClient)
		}
		if gymID != "" {
			var gym Client
			err := tx.Where("id = ? AND type = ?", gymID, TypeGym).Take(&gym).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown gym %q", ErrInvalidClient, gymID)
			}
			if err != nil {
				s.logError(opAssignGym, "gym_select_failed", err, zap.String("gym_id", gymID))
				return serviceerror.New(opAssignGym, "gym_select_failed", err)
			}
		}
		client.GymID = gymID
		return nil
	})
}

// DeleteMany removes each client independently and reports per-id outcomes. When
// coachID is set only that coach's clients may be removed. Deleting a gym detaches
// its athletes.
func (s *Service) DeleteMany(ctx context.Context, coachID string, clientIDs []string) bulk.Result {
	result := bulk.NewResult()
	for _, clientID := range clientIDs {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			statement := tx.Where("id = ?", clientID)
			if coachID != "" {
				statement = statement.Where("coach_id = ?", coachID)
			}
			var client Client
			err := statement.Take(&client).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			if err != nil {
				s.logError(opDeleteMany, "select_failed", err, zap.String("client_id", clientID))
				return serviceerror.New(opDeleteMany, "select_failed", err)
			}
			if client.Type == TypeGym {
				if err := tx.Model(&Client{}).Where("gym_id = ?", clientID).
					Updates(map[string]any{"gym_id": "", "updated_at_s": s.clock().UTC().Unix()}).Error; err != nil {
					s.logError(opDeleteMany, "detach_failed", err, zap.String("client_id", clientID))
					return serviceerror.New(opDeleteMany, "detach_failed", err)
				}
			}
			if err := tx.Where("id = ?", clientID).Delete(&Client{}).Error; err != nil {
				s.logError(opDeleteMany, "delete_failed", err, zap.String("client_id", clientID))
				return serviceerror.New(opDeleteMany, "delete_failed", err)
			}
			return nil
		})
		switch {
		case err == nil:
			result.Succeed(clientID)
		case errors.Is(err, ErrClientNotFound):
			result.Fail(clientID, "not_found")
		default:
			result.Fail(clientID, "delete_failed")
		}
	}
	return result
}

func (s *Service) update(ctx context.Context, operation, clientID string, apply func(tx *gorm.DB, client *Client) error) (Client, error) {
	var updated Client
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Client
		err := tx.Where("id = ?", clientID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			s.logError(operation, "select_failed", err, zap.String("client_id", clientID))
			return serviceerror.New(operation, "select_failed", err)
		}
		if err := apply(tx, &existing); err != nil {
			return err
		}
		existing.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&existing).Error; err != nil {
			s.logError(operation, "save_failed", err, zap.String("client_id", clientID))
			return serviceerror.New(operation, "save_failed", err)
		}
		updated = existing
		return nil
	})
	if txErr != nil {
		return Client{}, txErr
	}
	return updated, nil
}

func (s *Service) filtered(ctx context.Context, filter Filter) (*gorm.DB, error) {
	statement := s.db.WithContext(ctx).Model(&Client{})
	if kind := strings.ToLower(strings.TrimSpace(filter.Type)); kind != "" {
		if !validType(kind) {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidClient, filter.Type)
		}
		statement = statement.Where("type = ?", kind)
	}
	if coachID := strings.TrimSpace(filter.CoachID); coachID != "" {
		statement = statement.Where("coach_id = ?", coachID)
	}
	return statement, nil
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
	s.logger.Error("clients service error", attrs...)
}
