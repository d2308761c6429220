/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/tunabrain/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Channel{},
		&models.MediaItem{},
		&models.ScheduleRun{},
		&models.ScheduleSlot{},
	); err != nil {
		return err
	}

	return applyPostgresSlotOverlapGuard(database)
}

// applyPostgresSlotOverlapGuard adds a database-level backstop against
// overlapping slots within one run. The store already rejects overlaps at
// insertion time; the trigger protects persisted data from any other writer.
func applyPostgresSlotOverlapGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION prevent_run_slot_overlap()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.ends_at <= NEW.starts_at THEN
    RAISE EXCEPTION 'schedule slot end must be after start'
      USING ERRCODE = '23514';
  END IF;

  IF EXISTS (
    SELECT 1
    FROM schedule_slots ss
    WHERE ss.run_id = NEW.run_id
      AND ss.id <> NEW.id
      AND tstzrange(ss.starts_at, ss.ends_at, '[)') && tstzrange(NEW.starts_at, NEW.ends_at, '[)')
  ) THEN
    RAISE EXCEPTION 'overlapping slots are not allowed within run %', NEW.run_id
      USING ERRCODE = '23514';
  END IF;

  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_prevent_run_slot_overlap ON schedule_slots;

CREATE TRIGGER trg_prevent_run_slot_overlap
BEFORE INSERT OR UPDATE OF run_id, starts_at, ends_at
ON schedule_slots
FOR EACH ROW
EXECUTE FUNCTION prevent_run_slot_overlap();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres slot overlap guard: %w", err)
	}

	return nil
}
