// game/store/postgres_store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

const progressionSchema = `
CREATE TABLE IF NOT EXISTS rpg_player_data (
	uuid             VARCHAR(36) PRIMARY KEY,
	player_class     VARCHAR(32),
	level            INTEGER NOT NULL DEFAULT 1,
	exp              DOUBLE PRECISION NOT NULL DEFAULT 0,
	required_exp     DOUBLE PRECISION NOT NULL DEFAULT 100,
	base_attack      DOUBLE PRECISION NOT NULL DEFAULT 0,
	base_defense     DOUBLE PRECISION NOT NULL DEFAULT 0,
	base_mana        DOUBLE PRECISION NOT NULL DEFAULT 100,
	base_crit_chance DOUBLE PRECISION NOT NULL DEFAULT 0,
	base_crit_damage DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_mana     DOUBLE PRECISION NOT NULL DEFAULT 100,
	extensions       TEXT NOT NULL DEFAULT '{}',
	last_updated     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rpg_player_data_level ON rpg_player_data(level DESC);
`

const selectProgression = `SELECT uuid, player_class, level, exp, required_exp,
	base_attack, base_defense, base_mana, base_crit_chance, base_crit_damage,
	current_mana, extensions, last_updated
FROM rpg_player_data WHERE uuid = $1`

const upsertProgression = `INSERT INTO rpg_player_data (uuid, player_class, level, exp, required_exp,
	base_attack, base_defense, base_mana, base_crit_chance, base_crit_damage,
	current_mana, extensions, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (uuid) DO UPDATE SET
	player_class = EXCLUDED.player_class,
	level = EXCLUDED.level,
	exp = EXCLUDED.exp,
	required_exp = EXCLUDED.required_exp,
	base_attack = EXCLUDED.base_attack,
	base_defense = EXCLUDED.base_defense,
	base_mana = EXCLUDED.base_mana,
	base_crit_chance = EXCLUDED.base_crit_chance,
	base_crit_damage = EXCLUDED.base_crit_damage,
	current_mana = EXCLUDED.current_mana,
	extensions = EXCLUDED.extensions,
	last_updated = EXCLUDED.last_updated`

// PostgresStore persists progression in the rpg_player_data table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open *sql.DB (see shared/postgres.Open).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InitSchema creates the table and index if they don't exist.
func (ps *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, progressionSchema); err != nil {
		return fmt.Errorf("failed to initialize progression schema: %w", err)
	}
	log.Println("INFO: PostgresStore schema initialized.")
	return nil
}

// Load implements ProgressionStore.
func (ps *PostgresStore) Load(ctx context.Context, id uuid.UUID) (*models.Progression, error) {
	var (
		p          models.Progression
		class      sql.NullString
		extensions string
	)
	err := ps.db.QueryRowContext(ctx, selectProgression, id.String()).Scan(
		&p.UUID, &class, &p.Level, &p.CurrentExp, &p.RequiredExp,
		&p.BaseAttack, &p.BaseDefense, &p.BaseMaxMana, &p.BaseCritPct, &p.BaseCritDmg,
		&p.CurrentMana, &extensions, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("load", id.String(), err)
	}
	if class.Valid {
		p.Class = class.String
	}
	if extensions != "" && extensions != "{}" {
		if err := json.Unmarshal([]byte(extensions), &p.Extensions); err != nil {
			log.Printf("WARNING: PostgresStore: dropping malformed extensions for %s: %v", id, err)
			p.Extensions = nil
		}
	}
	return &p, nil
}

// Save implements ProgressionStore with an upsert.
func (ps *PostgresStore) Save(ctx context.Context, p *models.Progression) error {
	extensions := []byte("{}")
	if len(p.Extensions) > 0 {
		var err error
		if extensions, err = json.Marshal(p.Extensions); err != nil {
			return persistenceErr("encode", p.UUID, err)
		}
	}
	class := sql.NullString{String: p.Class, Valid: p.Class != ""}
	p.UpdatedAt = time.Now().UTC()

	_, err := ps.db.ExecContext(ctx, upsertProgression,
		p.UUID, class, p.Level, p.CurrentExp, p.RequiredExp,
		p.BaseAttack, p.BaseDefense, p.BaseMaxMana, p.BaseCritPct, p.BaseCritDmg,
		p.CurrentMana, string(extensions), p.UpdatedAt,
	)
	if err != nil {
		return persistenceErr("save", p.UUID, err)
	}
	return nil
}
