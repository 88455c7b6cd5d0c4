package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

const globalScheduleKey = "global_schedule_enabled"

// ZoneRepository persists the zone set and the global schedule gate. The
// in-memory registry is authoritative; every mutation rewrites the full zone
// set in one transaction, so the last successful writer wins on disk.
type ZoneRepository struct {
	BaseRepository
}

// NewZoneRepository creates a new zone repository.
func NewZoneRepository(db *DB) *ZoneRepository {
	return &ZoneRepository{BaseRepository: NewBaseRepository(db)}
}

// Load reads all zone definitions and the global schedule gate. A missing
// setting defaults the gate to enabled.
func (r *ZoneRepository) Load(ctx context.Context) ([]models.Zone, bool, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT name, gpio_pin, days, start_time, duration_minutes, schedule_enabled,
		       created_at, updated_at
		FROM zones
		ORDER BY name
	`)
	if err != nil {
		return nil, false, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var z models.Zone
		var daysJSON string
		if err := rows.Scan(
			&z.Name, &z.GPIOPin, &daysJSON, &z.Schedule.StartTime,
			&z.Schedule.DurationMinutes, &z.Schedule.Enabled,
			&z.CreatedAt, &z.UpdatedAt,
		); err != nil {
			return nil, false, fmt.Errorf("scanning zone: %w", err)
		}
		if err := json.Unmarshal([]byte(daysJSON), &z.Schedule.Days); err != nil {
			return nil, false, fmt.Errorf("decoding days for zone %q: %w", z.Name, err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating zones: %w", err)
	}

	enabled := true
	var value string
	err = r.DB().QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", globalScheduleKey,
	).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		// First boot. Keep the default.
	case err != nil:
		return nil, false, fmt.Errorf("reading global schedule setting: %w", err)
	default:
		enabled, _ = strconv.ParseBool(value)
	}

	return zones, enabled, nil
}

// Save replaces the persisted zone set and global gate in one transaction.
func (r *ZoneRepository) Save(ctx context.Context, zones []models.Zone, globalEnabled bool) error {
	err := r.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM zones"); err != nil {
			return fmt.Errorf("clearing zones: %w", err)
		}

		for _, z := range zones {
			daysJSON, err := json.Marshal(z.Schedule.Days)
			if err != nil {
				return fmt.Errorf("encoding days for zone %q: %w", z.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO zones (
					name, gpio_pin, days, start_time, duration_minutes,
					schedule_enabled, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				z.Name, z.GPIOPin, string(daysJSON), z.Schedule.StartTime,
				z.Schedule.DurationMinutes, z.Schedule.Enabled,
				z.CreatedAt, z.UpdatedAt,
			); err != nil {
				return fmt.Errorf("inserting zone %q: %w", z.Name, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, globalScheduleKey, strconv.FormatBool(globalEnabled)); err != nil {
			return fmt.Errorf("writing global schedule setting: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("saving zone set: %w", err)
	}
	return nil
}
