package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

type settingsRepository interface {
	GetCalculationSettings(ctx context.Context) (models.CalculationSettings, error)
	SaveCalculationSettings(ctx context.Context, settings models.CalculationSettings, actor string) error
	ListExtraFields(ctx context.Context) ([]models.ExtraField, error)
}

type settingsInvalidator interface {
	SettingsUpdated(ctx context.Context) (int, error)
}

// SettingsService reads and updates the global calculation settings. Every
// successful update drops the cached configuration and score entries.
type SettingsService struct {
	repo        settingsRepository
	invalidator settingsInvalidator
	logger      *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, invalidator settingsInvalidator, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, invalidator: invalidator, logger: logger}
}

// Get returns the stored settings, the extra-field definitions and their fingerprint.
func (s *SettingsService) Get(ctx context.Context) (*dto.SettingsResponse, error) {
	settings, err := s.repo.GetCalculationSettings(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSettingsUnavailable.Code, appErrors.ErrSettingsUnavailable.Status, "failed to load calculation settings")
	}
	fields, err := s.repo.ListExtraFields(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSettingsUnavailable.Code, appErrors.ErrSettingsUnavailable.Status, "failed to load extra fields")
	}
	if fields == nil {
		fields = []models.ExtraField{}
	}
	return &dto.SettingsResponse{
		Settings:    settings,
		ExtraFields: fields,
		Fingerprint: scoring.SettingsFingerprint(settings, fields),
	}, nil
}

// Update applies a partial update on top of the stored settings.
func (s *SettingsService) Update(ctx context.Context, req dto.UpdateSettingsRequest, actor string) (models.CalculationSettings, error) {
	current, err := s.repo.GetCalculationSettings(ctx)
	if err != nil {
		return models.CalculationSettings{}, appErrors.Wrap(err, appErrors.ErrSettingsUnavailable.Code, appErrors.ErrSettingsUnavailable.Status, "failed to load calculation settings")
	}
	next := req.Apply(current)
	if !scoring.ValidSettings(next) {
		return models.CalculationSettings{}, appErrors.Clone(appErrors.ErrInvalidSettings, "")
	}
	if next == current {
		return current, nil
	}
	if err := s.repo.SaveCalculationSettings(ctx, next, actor); err != nil {
		return models.CalculationSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save calculation settings")
	}

	if s.invalidator != nil {
		if n, err := s.invalidator.SettingsUpdated(ctx); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.Error(err))
		} else {
			s.logger.Info("calculation settings updated", zap.String("actor", actor), zap.Int("invalidated", n))
		}
	}
	return next, nil
}
