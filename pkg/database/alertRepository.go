package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coolmon/pkg/alarms"
	"coolmon/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger lifecycle errors surfaced to the administrative surface.
var (
	ErrAlertNotFound       = errors.New("alert not found")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
	ErrAlreadyResolved     = errors.New("alert already resolved")
)

// AlertRepository is the alert ledger. Creation goes through the partial
// unique index on (heat_exchanger_id, type, dedup_key) WHERE resolved =
// false, so two overlapping poll cycles cannot double-create an open
// alert: the loser's insert is a no-op.
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction,
// used by the poll pipeline to keep alert writes in the per-device
// commit scope.
func (repo *AlertRepository) WithTx(tx *gorm.DB) *AlertRepository {
	return &AlertRepository{db: tx}
}

// RecordAlarms persists one alert per fact that has no matching open
// alert, returning the newly created alerts. An existing open alert is a
// no-op; a lost insert race is treated the same way. Per-fact failures
// are logged and skipped so one bad fact cannot sink the device's cycle.
func (repo *AlertRepository) RecordAlarms(ctx context.Context, exchangerID int64, facts []alarms.Fact) []models.Alert {
	var created []models.Alert

	for _, fact := range facts {
		var existing models.Alert
		err := repo.db.WithContext(ctx).
			Where("heat_exchanger_id = ? AND type = ? AND dedup_key = ? AND resolved = ?",
				exchangerID, fact.Type, fact.DedupKey, false).
			First(&existing).Error
		if err == nil {
			// Already open; intentionally not a "last seen" bump.
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("Open-alert lookup failed", "component", "AlertLedger",
				"exchanger_id", exchangerID, "type", fact.Type, "dedup_key", fact.DedupKey, "error", err)
			continue
		}

		alert := models.Alert{
			HeatExchangerID: exchangerID,
			Type:            fact.Type,
			DedupKey:        fact.DedupKey,
			Severity:        fact.Severity,
			Title:           fact.Title,
			Description:     fact.Description,
			PumpID:          fact.PumpID,
			PumpName:        fact.PumpName,
			FlowRate:        fact.FlowRate,
			Threshold:       fact.Threshold,
			CreatedAt:       time.Now().UTC(),
		}

		result := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "heat_exchanger_id"}, {Name: "type"}, {Name: "dedup_key"},
			},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "resolved"}, Value: false},
			}},
			DoNothing: true,
		}).Create(&alert)

		if result.Error != nil {
			slog.Error("Failed to create alert", "component", "AlertLedger",
				"exchanger_id", exchangerID, "type", fact.Type, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// Concurrent cycle won the insert; success-no-op.
			slog.Debug("Alert insert conflicted with open alert", "component", "AlertLedger",
				"exchanger_id", exchangerID, "type", fact.Type, "dedup_key", fact.DedupKey)
			continue
		}

		slog.Info("Created alert", "component", "AlertLedger",
			"alert_id", alert.ID, "exchanger_id", exchangerID, "type", fact.Type, "severity", fact.Severity)
		created = append(created, alert)
	}

	return created
}

// Acknowledge marks an alert acknowledged by actor. Acknowledging twice
// is a conflict.
func (repo *AlertRepository) Acknowledge(ctx context.Context, alertID int64, actor, comment string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert, err := loadAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Acknowledged {
			return ErrAlreadyAcknowledged
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"acknowledged":    true,
			"acknowledged_by": actor,
			"acknowledged_at": now,
		}
		if comment != "" {
			updates["comments"] = models.AppendComment(alert.Comments, actor, comment, now)
		}
		return tx.Model(alert).Updates(updates).Error
	})
}

// Resolve marks an alert resolved, auto-acknowledging it first if needed.
// Resolving twice is a conflict.
func (repo *AlertRepository) Resolve(ctx context.Context, alertID int64, actor, comment string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert, err := loadAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Resolved {
			return ErrAlreadyResolved
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"resolved":    true,
			"resolved_by": actor,
			"resolved_at": now,
		}
		if !alert.Acknowledged {
			updates["acknowledged"] = true
			updates["acknowledged_by"] = actor
			updates["acknowledged_at"] = now
		}
		if comment != "" {
			updates["comments"] = models.AppendComment(alert.Comments, actor+" (RESOLVED)", comment, now)
		}
		return tx.Model(alert).Updates(updates).Error
	})
}

// Comment appends to the alert's comment log unconditionally.
func (repo *AlertRepository) Comment(ctx context.Context, alertID int64, actor, text string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert, err := loadAlert(tx, alertID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(alert).
			Update("comments", models.AppendComment(alert.Comments, actor, text, now)).Error
	})
}

// BulkResolve resolves every open alert for a device, acknowledging the
// ones that were not yet acknowledged, and returns the resolved count.
func (repo *AlertRepository) BulkResolve(ctx context.Context, exchangerID int64, actor string) (int64, error) {
	var count int64

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if err := tx.Model(&models.Alert{}).
			Where("heat_exchanger_id = ? AND resolved = ? AND acknowledged = ?", exchangerID, false, false).
			Updates(map[string]any{
				"acknowledged":    true,
				"acknowledged_by": actor,
				"acknowledged_at": now,
			}).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Alert{}).
			Where("heat_exchanger_id = ? AND resolved = ?", exchangerID, false).
			Updates(map[string]any{
				"resolved":    true,
				"resolved_by": actor,
				"resolved_at": now,
			})
		count = result.RowsAffected
		return result.Error
	})

	return count, err
}

// AlertFilter narrows List and Count queries.
type AlertFilter struct {
	HeatExchangerID *int64
	Acknowledged    *bool
	Resolved        *bool
	Severity        string
	Limit           int
}

// Get returns a single alert by id.
func (repo *AlertRepository) Get(ctx context.Context, alertID int64) (*models.Alert, error) {
	return loadAlert(repo.db.WithContext(ctx), alertID)
}

// List returns alerts matching the filter, newest first.
func (repo *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var alerts []models.Alert
	err := applyFilter(repo.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

// Count returns the number of alerts matching the filter.
func (repo *AlertRepository) Count(ctx context.Context, filter AlertFilter) (int64, error) {
	var count int64
	err := applyFilter(repo.db.WithContext(ctx).Model(&models.Alert{}), filter).
		Count(&count).Error
	return count, err
}

func applyFilter(query *gorm.DB, filter AlertFilter) *gorm.DB {
	if filter.HeatExchangerID != nil {
		query = query.Where("heat_exchanger_id = ?", *filter.HeatExchangerID)
	}
	if filter.Acknowledged != nil {
		query = query.Where("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	return query
}

func loadAlert(tx *gorm.DB, alertID int64) (*models.Alert, error) {
	var alert models.Alert
	if err := tx.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}
