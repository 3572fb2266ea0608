package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/mx-space/viewblock/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersionOption is the option row holding the last applied upgrade version.
const SchemaVersionOption = "views_db_version"

// ErrUnknownRoutine is returned by the routine factory for unregistered names.
var ErrUnknownRoutine = errors.New("unknown routine")

// Routine is a one-off upgrade step applied once when the stored version is older.
type Routine struct {
	Name    string
	Version int
	Run     func(ctx context.Context) error
}

// CachePurger drops every cached rendered preview.
type CachePurger interface {
	PurgeAll(ctx context.Context) error
}

// Routines returns the known upgrade routines in version order.
func Routines(purger CachePurger) []Routine {
	return []Routine{
		{
			// Rendered output changed shape; cached previews must be rebuilt.
			Name:    "upgrade_db_to_2080300",
			Version: 2080300,
			Run: func(ctx context.Context) error {
				if purger == nil {
					return nil
				}
				return purger.PurgeAll(ctx)
			},
		},
	}
}

// GetRoutine returns the routine registered under name.
func GetRoutine(routines []Routine, name string) (Routine, error) {
	for _, r := range routines {
		if r.Name == name {
			return r, nil
		}
	}
	return Routine{}, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
}

// Upgrade applies every routine newer than the stored schema version and records
// the version after each success.
func Upgrade(ctx context.Context, db *gorm.DB, routines []Routine, logger *zap.Logger) error {
	current, err := storedVersion(db.WithContext(ctx))
	if err != nil {
		return err
	}

	sorted := append([]Routine(nil), routines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, r := range sorted {
		if r.Version <= current {
			continue
		}
		logger.Info("running upgrade routine", zap.String("routine", r.Name), zap.Int("version", r.Version))
		if err := r.Run(ctx); err != nil {
			return fmt.Errorf("upgrade routine %s: %w", r.Name, err)
		}
		opt := models.OptionModel{Name: SchemaVersionOption, Value: strconv.Itoa(r.Version)}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&opt).Error; err != nil {
			return fmt.Errorf("record schema version %d: %w", r.Version, err)
		}
		current = r.Version
	}
	return nil
}

func storedVersion(db *gorm.DB) (int, error) {
	var opt models.OptionModel
	err := db.First(&opt, "name = ?", SchemaVersionOption).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(opt.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", opt.Value, err)
	}
	return v, nil
}
