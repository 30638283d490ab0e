package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"gorm.io/gorm"
)

// ErrNilDB is returned by Refresh without a connection.
var ErrNilDB = errors.New("settings: nil db")

// Refresh reloads runtime_settings into the active snapshot.
// A failed read leaves the previous snapshot in place.
func Refresh(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return ErrNilDB
	}
	var rows []models.RuntimeSetting
	if errFind := conn.WithContext(ctx).Order("key ASC").Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	var newest time.Time
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(strings.TrimSpace(row.Value))
		if at := row.UpdatedAt.UTC(); at.After(newest) {
			newest = at
		}
	}
	Store(newest, values)
	return nil
}
