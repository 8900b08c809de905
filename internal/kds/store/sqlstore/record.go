package sqlstore

import (
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// orderRecord is the orders table. The image is stored inline as its data URL.
type orderRecord struct {
	ID              string     `gorm:"primaryKey;size:32"`
	TableNumber     int        `gorm:"column:table_number;not null;index"`
	StartedAt       string     `gorm:"size:5;not null"`
	Status          string     `gorm:"size:16;not null;index"`
	InitialDuration int        `gorm:"not null"`
	Image           string     `gorm:"type:text;not null"`
	CreatedAt       time.Time  `gorm:"not null;index"`
	CompletedAt     *time.Time
}

func (orderRecord) TableName() string {
	return "orders"
}

// metaRecord keeps store-wide counters, currently only the sequence high-water mark.
type metaRecord struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int    `gorm:"not null"`
}

func (metaRecord) TableName() string {
	return "kds_meta"
}

const lastSequenceKey = "last_sequence"

func toRecord(o *model.Order) *orderRecord {
	return &orderRecord{
		ID:              o.ID,
		TableNumber:     o.Table,
		StartedAt:       o.StartedAt,
		Status:          string(o.Status),
		InitialDuration: o.InitialDuration,
		Image:           o.Image,
		CreatedAt:       o.CreatedAt,
		CompletedAt:     o.CompletedAt,
	}
}

func (r *orderRecord) toModel() *model.Order {
	return &model.Order{
		ID:              r.ID,
		Table:           r.TableNumber,
		StartedAt:       r.StartedAt,
		Status:          model.Status(r.Status),
		InitialDuration: r.InitialDuration,
		Image:           r.Image,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
}
