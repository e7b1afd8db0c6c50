// Package settings provides the system-settings row shared with the
// administrative surface: device credentials, notification config,
// alarm thresholds, and the monitoring toggle/interval.
package settings

import (
	"context"
	"errors"
	"log/slog"

	"coolmon/pkg/config"
	"coolmon/pkg/database"
	"coolmon/pkg/models"

	"gorm.io/gorm"
)

// Service reads and writes the single system_settings row. Secret columns
// are encrypted at rest; Get returns them decrypted. When no row exists
// yet, config-file defaults are served instead.
type Service struct {
	repo          *database.GormRepository[models.SystemSettings]
	encryptionKey string
	defaults      models.SystemSettings
}

func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		repo:          database.NewGormRepository[models.SystemSettings](db),
		encryptionKey: cfg.EncryptionKey,
		defaults: models.SystemSettings{
			RedfishUsername:           cfg.RedfishUsername,
			RedfishPassword:           cfg.RedfishPassword,
			PumpFlowCriticalThreshold: 10.0,
			MonitoringEnabled:         true,
			PollingIntervalSeconds:    cfg.PollIntervalSeconds,
			SMTPServer:                "smtp.office365.com",
			SMTPPort:                  587,
			SMTPUseTLS:                true,
		},
	}
}

// Get returns the decrypted settings row, or the config defaults when the
// row does not exist yet.
func (service *Service) Get(ctx context.Context) (*models.SystemSettings, error) {
	rows, err := service.repo.List(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if len(rows) == 0 {
		defaults := service.defaults
		return &defaults, nil
	}

	decrypted, err := database.DecryptStruct(*rows[0], service.encryptionKey)
	if err != nil {
		// Unencrypted rows from before the key was set decrypt as-is.
		slog.Warn("Settings decryption failed, using stored values", "component", "Settings", "error", err)
		return rows[0], nil
	}
	return &decrypted, nil
}

// Save encrypts secret fields and upserts the settings row.
func (service *Service) Save(ctx context.Context, updated *models.SystemSettings) (*models.SystemSettings, error) {
	encrypted, err := database.EncryptStruct(*updated, service.encryptionKey)
	if err != nil {
		return nil, err
	}

	existing, err := service.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return service.repo.Create(ctx, &encrypted)
	}
	return service.repo.Update(ctx, existing[0].ID, &encrypted)
}

// DeviceCredentials returns the username/password for device requests.
func (service *Service) DeviceCredentials(ctx context.Context) (string, string) {
	current, err := service.Get(ctx)
	if err != nil {
		slog.Error("Failed to load settings, using config credentials", "component", "Settings", "error", err)
		return service.defaults.RedfishUsername, service.defaults.RedfishPassword
	}
	return current.RedfishUsername, current.RedfishPassword
}

// MonitoringEnabled reports whether poll cycles should run.
func (service *Service) MonitoringEnabled(ctx context.Context) bool {
	current, err := service.Get(ctx)
	if err != nil {
		slog.Error("Failed to load settings, assuming monitoring enabled", "component", "Settings", "error", err)
		return true
	}
	return current.MonitoringEnabled
}

// LowFlowThreshold returns the critical pump-flow threshold in L/min.
func (service *Service) LowFlowThreshold(ctx context.Context) float64 {
	current, err := service.Get(ctx)
	if err != nil || current.PumpFlowCriticalThreshold <= 0 {
		return service.defaults.PumpFlowCriticalThreshold
	}
	return current.PumpFlowCriticalThreshold
}

// PollIntervalSeconds returns the configured polling cadence.
func (service *Service) PollIntervalSeconds(ctx context.Context) int {
	current, err := service.Get(ctx)
	if err != nil || current.PollingIntervalSeconds <= 0 {
		return service.defaults.PollingIntervalSeconds
	}
	return current.PollingIntervalSeconds
}
