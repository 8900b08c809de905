// Package sqlstore is the durable OrderStore, backed by SQLite through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

var _ core.OrderStore = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// Open connects to the database in opts.DSN and migrates the schema.
func Open(opts *options.StoreOptions) (*Store, error) {
	level := gormlogger.Silent
	if opts.LogQueries {
		level = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.New(logWriter{log.WithName("sqlstore")}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.DSN, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection serializes every operation
	// and keeps an in-memory database alive for the life of the store.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&orderRecord{}, &metaRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, o *model.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&orderRecord{}).Where("id = ?", o.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("create %s: %w", o.ID, core.ErrDuplicateID)
		}

		if err := tx.Create(toRecord(o)).Error; err != nil {
			return fmt.Errorf("create %s: %w", o.ID, err)
		}

		var meta metaRecord
		err := tx.Where("name = ?", lastSequenceKey).First(&meta).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			meta = metaRecord{Name: lastSequenceKey}
		case err != nil:
			return err
		}
		if o.Table > meta.Value {
			meta.Value = o.Table
		}
		return tx.Save(&meta).Error
	})
}

func (s *Store) Get(ctx context.Context, id string) (*model.Order, error) {
	var rec orderRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return rec.toModel(), nil
}

func (s *Store) List(ctx context.Context) ([]*model.Order, error) {
	var recs []orderRecord
	if err := s.db.WithContext(ctx).Order("table_number ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	out := make([]*model.Order, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toModel())
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, mutate model.Mutation) (*model.Order, error) {
	var updated *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec orderRecord
		err := tx.Where("id = ?", id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		o := rec.toModel()
		mutate(o)
		o.ID, o.Table = rec.ID, rec.TableNumber

		// Select("*") writes zero values and nil CompletedAt too.
		if err := tx.Model(&orderRecord{}).Where("id = ?", id).Select("*").Updates(toRecord(o)).Error; err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&orderRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&orderRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}

// LastSequence returns the stored high-water mark, or the largest table
// number on record for databases created before the mark existed.
func (s *Store) LastSequence(ctx context.Context) (int, error) {
	var meta metaRecord
	err := s.db.WithContext(ctx).Where("name = ?", lastSequenceKey).First(&meta).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("last sequence: %w", err)
	}

	var maxTable int
	if err := s.db.WithContext(ctx).Model(&orderRecord{}).
		Select("COALESCE(MAX(table_number), 0)").Scan(&maxTable).Error; err != nil {
		return 0, fmt.Errorf("last sequence: %w", err)
	}

	return max(meta.Value, maxTable), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// logWriter routes gorm's printf-style logger into the structured logger.
type logWriter struct {
	logger log.Logger
}

func (w logWriter) Printf(format string, args ...any) {
	w.logger.Debug(fmt.Sprintf(format, args...))
}
