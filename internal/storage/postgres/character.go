package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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
// stored as JSONB columns.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var c character.Character
	err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Faction, &c.Gender, &c.Class,
		&c.Level, &c.Experience, &c.SkillPoints, &c.HP, &c.MaxHP,
		&c.Stats.Attack, &c.Stats.Defense, &c.Stats.Agility, &c.Stats.Critical,
		&c.LearnedSkills, &c.ActiveSkills, &c.Cooldowns, &c.Buffs, &c.Inventory, &c.Gold,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Normalize()
	return &c, nil
}

// Create inserts a new character and returns it with ID, Version and timestamps set.
//
// Precondition: c.AccountID must reference an existing account; c.Name must be non-empty.
// Postcondition: Returns the created character, or storage.ErrCharacterNameTaken on duplicate.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	n := normalized(c)
	row := r.db.QueryRow(ctx, `
		INSERT INTO characters
			(account_id, name, faction, gender, class,
			 level, experience, skill_points, hp, max_hp,
			 attack, defense, agility, critical,
			 learned_skills, active_skills, cooldowns, buffs, inventory, gold)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING `+characterColumns,
		n.AccountID, n.Name, n.Faction, n.Gender, n.Class,
		n.Level, n.Experience, n.SkillPoints, n.HP, n.MaxHP,
		n.Stats.Attack, n.Stats.Defense, n.Stats.Agility, n.Stats.Critical,
		n.LearnedSkills, n.ActiveSkills, n.Cooldowns, n.Buffs, n.Inventory, n.Gold,
	)
	out, err := scanCharacter(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// ListByAccount returns all characters for the given account ID, ordered by creation.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE account_id = $1 ORDER BY created_at ASC, id ASC`,
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM characters WHERE account_id = $1`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting characters: %w", err)
	}
	return n, nil
}

// GetByID returns the character with the given ID.
//
// Postcondition: Returns the character, or storage.ErrCharacterNotFound.
func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRow(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// Save writes every mutable field of c if c.Version still matches the stored version.
//
// Precondition: c.ID must reference an existing character.
// Postcondition: On success c.Version is incremented and c.UpdatedAt refreshed. Returns
// storage.ErrConcurrentModification if another writer saved first, or
// storage.ErrCharacterNotFound if the row does not exist.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	n := normalized(c)
	err := r.db.QueryRow(ctx, `
		UPDATE characters SET
			level = $3, experience = $4, skill_points = $5, hp = $6, max_hp = $7,
			attack = $8, defense = $9, agility = $10, critical = $11,
			learned_skills = $12, active_skills = $13, cooldowns = $14, buffs = $15,
			inventory = $16, gold = $17,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		n.ID, n.Version,
		n.Level, n.Experience, n.SkillPoints, n.HP, n.MaxHP,
		n.Stats.Attack, n.Stats.Defense, n.Stats.Agility, n.Stats.Critical,
		n.LearnedSkills, n.ActiveSkills, n.Cooldowns, n.Buffs, n.Inventory, n.Gold,
	).Scan(&c.Version, &c.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("saving character: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM characters WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking character: %w", err)
	}
	if !exists {
		return storage.ErrCharacterNotFound
	}
	return storage.ErrConcurrentModification
}

// normalized returns a copy whose nil collections are replaced by empty ones so they are
// stored as empty JSON values rather than null.
func normalized(c *character.Character) *character.Character {
	cp := *c
	cp.Normalize()
	if cp.Buffs == nil {
		cp.Buffs = condition.Set{}
	}
	return &cp
}
