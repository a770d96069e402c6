package models

import "github.com/google/uuid"

// Reference tables are owned by the taxonomy service; this service only reads them.

type Feature struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	IsMultichoice bool      `gorm:"column:is_multichoice;not null;default:false"`
	IsVariation   bool      `gorm:"column:is_variation;not null;default:false"`
	IsVisible     bool      `gorm:"column:is_visible;not null;default:true"`
}

func (Feature) TableName() string { return "features" }

type FeatureValue struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FeatureID uuid.UUID `gorm:"column:feature_id;type:uuid;not null"`
	Value     string    `gorm:"column:value;not null"`
}

func (FeatureValue) TableName() string { return "feature_values" }

type Color struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
}

func (Color) TableName() string { return "colors" }

type Brand struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
}

func (Brand) TableName() string { return "brands" }

// Category is a node in the category tree. Level 0 is a root.
type Category struct {
	ID       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name     string     `gorm:"column:name;not null"`
	ParentID *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	Level    int        `gorm:"column:level;not null;default:0"`
}

func (Category) TableName() string { return "categories" }
