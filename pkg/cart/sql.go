package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/menu"
)

// LineRecord is the cart_lines row.
type LineRecord struct {
	ID          uint   `gorm:"primaryKey"`
	CartID      string `gorm:"size:64;index;not null"`
	Position    int    `gorm:"not null"`
	ItemID      string `gorm:"size:128;not null"`
	Name        string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Price       string `gorm:"size:32"`
	ImageURL    string `gorm:"type:text"`
	Quantity    int    `gorm:"not null"`
}

func (LineRecord) TableName() string { return "cart_lines" }

// SQLPersister stores one cart's lines as cart_lines rows.
type SQLPersister struct {
	db     *gorm.DB
	cartID string
}

// Migrate creates or updates the cart_lines table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&LineRecord{})
}

func NewSQLPersister(db *gorm.DB, cartID string) *SQLPersister {
	return &SQLPersister{db: db, cartID: cartID}
}

func (s *SQLPersister) Load(ctx context.Context) ([]Line, error) {
	var rows []LineRecord
	err := s.db.WithContext(ctx).
		Where("cart_id = ?", s.cartID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, Line{
			ItemID:      r.ItemID,
			Name:        r.Name,
			Description: r.Description,
			Price:       menu.Price(r.Price),
			ImageURL:    r.ImageURL,
			Quantity:    r.Quantity,
		})
	}
	return lines, nil
}

func (s *SQLPersister) Save(ctx context.Context, lines []Line) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", s.cartID).Delete(&LineRecord{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]LineRecord, len(lines))
		for i, l := range lines {
			rows[i] = LineRecord{
				CartID:      s.cartID,
				Position:    i,
				ItemID:      l.ItemID,
				Name:        l.Name,
				Description: l.Description,
				Price:       l.Price.String(),
				ImageURL:    l.ImageURL,
				Quantity:    l.Quantity,
			}
		}
		return tx.Create(&rows).Error
	})
}

func (s *SQLPersister) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("cart_id = ?", s.cartID).Delete(&LineRecord{}).Error
}
