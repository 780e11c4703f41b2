package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/corsair/internal/game/character"
	"github.com/cory-johannsen/corsair/internal/game/condition"
	"github.com/cory-johannsen/corsair/internal/storage"
)

const characterColumns = `id, account_id, name, faction, gender, class,
	level, experience, skill_points, hp, max_hp,
	attack, defense, agility, critical,
	learned_skills, active_skills, cooldowns, buffs, inventory, gold,
	version, created_at, updated_at`

// CharacterRepository provides character persistence operations. Collection fields are
// stored as JSON text.
type CharacterRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCharacterRepository creates a CharacterRepository backed by db.
func NewCharacterRepository(db *sql.DB) *CharacterRepository {
	return &CharacterRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (*character.Character, error) {
	var (
		c                                      character.Character
		learned, active, cooldowns, buffs, inv string
		created, updated                       string
	)
	err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Faction, &c.Gender, &c.Class,
		&c.Level, &c.Experience, &c.SkillPoints, &c.HP, &c.MaxHP,
		&c.Stats.Attack, &c.Stats.Defense, &c.Stats.Agility, &c.Stats.Critical,
		&learned, &active, &cooldowns, &buffs, &inv, &c.Gold,
		&c.Version, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"learned_skills", learned, &c.LearnedSkills},
		{"active_skills", active, &c.ActiveSkills},
		{"cooldowns", cooldowns, &c.Cooldowns},
		{"buffs", buffs, &c.Buffs},
		{"inventory", inv, &c.Inventory},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", col.name, err)
		}
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	c.Normalize()
	return &c, nil
}

// collections is the JSON encoding of a character's collection fields.
type collections struct {
	learned, active, cooldowns, buffs, inventory string
}

func encodeCollections(c *character.Character) (collections, error) {
	n := *c
	n.Normalize()
	if n.Buffs == nil {
		n.Buffs = condition.Set{}
	}
	var (
		out collections
		err error
	)
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&out.learned, n.LearnedSkills},
		{&out.active, n.ActiveSkills},
		{&out.cooldowns, n.Cooldowns},
		{&out.buffs, n.Buffs},
		{&out.inventory, n.Inventory},
	} {
		if *f.dst, err = jsonText(f.v); err != nil {
			return collections{}, fmt.Errorf("encoding character: %w", err)
		}
	}
	return out, nil
}

// Create inserts a new character and returns it with ID, Version and timestamps set.
//
// Postcondition: Returns the stored character, or storage.ErrCharacterNameTaken on duplicate.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	cols, err := encodeCollections(c)
	if err != nil {
		return nil, err
	}
	now := formatTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO characters
			(account_id, name, faction, gender, class,
			 level, experience, skill_points, hp, max_hp,
			 attack, defense, agility, critical,
			 learned_skills, active_skills, cooldowns, buffs, inventory, gold,
			 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.AccountID, c.Name, c.Faction, c.Gender, c.Class,
		c.Level, c.Experience, c.SkillPoints, c.HP, c.MaxHP,
		c.Stats.Attack, c.Stats.Defense, c.Stats.Agility, c.Stats.Critical,
		cols.learned, cols.active, cols.cooldowns, cols.buffs, cols.inventory, c.Gold,
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading character id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// ListByAccount returns all characters for the given account ID, ordered by creation.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE account_id = ? ORDER BY id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var out []*character.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating characters: %w", err)
	}
	return out, nil
}

// CountByAccount returns how many characters the account owns.
func (r *CharacterRepository) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM characters WHERE account_id = ?`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting characters: %w", err)
	}
	return n, nil
}

// GetByID returns the character with the given ID, or storage.ErrCharacterNotFound.
func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// Save writes every mutable field of c if c.Version still matches the stored version.
//
// Postcondition: On success c.Version is incremented and c.UpdatedAt refreshed. Returns
// storage.ErrConcurrentModification if another writer saved first, or
// storage.ErrCharacterNotFound if the row does not exist.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	cols, err := encodeCollections(c)
	if err != nil {
		return err
	}
	updated := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE characters SET
			level = ?, experience = ?, skill_points = ?, hp = ?, max_hp = ?,
			attack = ?, defense = ?, agility = ?, critical = ?,
			learned_skills = ?, active_skills = ?, cooldowns = ?, buffs = ?,
			inventory = ?, gold = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		c.Level, c.Experience, c.SkillPoints, c.HP, c.MaxHP,
		c.Stats.Attack, c.Stats.Defense, c.Stats.Agility, c.Stats.Critical,
		cols.learned, cols.active, cols.cooldowns, cols.buffs, cols.inventory, c.Gold,
		formatTime(updated),
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	if n == 1 {
		c.Version++
		c.UpdatedAt = updated
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM characters WHERE id = ?)`, c.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking character: %w", err)
	}
	if !exists {
		return storage.ErrCharacterNotFound
	}
	return storage.ErrConcurrentModification
}
