package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/raid"
)

// DefaultRecentLimit caps RecentRaids when no positive limit is given.
const DefaultRecentLimit = 20

// ErrRaidNotFound is returned when a raid lookup yields no results.
var ErrRaidNotFound = errors.New("raid not found")

// RaidRecord is a persisted raid outcome.
type RaidRecord struct {
	ID        int64
	RoomID    string
	Code      string
	Summary   raid.Summary
	CreatedAt time.Time
}

// RaidResultRepository persists completed raids and their per-player results.
type RaidResultRepository struct {
	db *pgxpool.Pool
}

// NewRaidResultRepository creates a RaidResultRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRaidResultRepository(db *pgxpool.Pool) *RaidResultRepository {
	return &RaidResultRepository{db: db}
}

// SaveRaid stores a completed raid and its players in one transaction.
//
// Precondition: s must come from a completed raid.
// Postcondition: Either every row is written or none is.
func (r *RaidResultRepository) SaveRaid(ctx context.Context, roomID, code string, s raid.Summary) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO raids (room_id, code, winner, started_at, ended_at,
			                    duration_seconds, boss_damage, overkill, bars_defeated)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			roomID, code, string(s.Winner), s.StartedAt, s.EndedAt,
			s.Duration, s.BossDamage, s.Overkill, s.BarsDefeated,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting raid: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range s.Players {
			batch.Queue(
				`INSERT INTO raid_players (raid_id, player_id, rank, name, character_id,
				                           damage, healing, level, alive)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				id, p.ID, i+1, p.Name, string(p.Character),
				p.Damage, p.Healing, p.Level, p.Alive,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting raid players: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving raid %s: %w", code, err)
	}
	return nil
}

// RecentRaids returns the most recently ended raids, newest first.
//
// Postcondition: At most limit records are returned; limit <= 0 selects DefaultRecentLimit.
func (r *RaidResultRepository) RecentRaids(ctx context.Context, limit int) ([]RaidRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, room_id, code, winner, started_at, ended_at,
		        duration_seconds, boss_damage, overkill, bars_defeated, created_at
		 FROM raids
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing raids: %w", err)
	}
	records, err := scanRaids(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachPlayers(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// RaidByID returns one persisted raid.
//
// Postcondition: Returns ErrRaidNotFound when no raid has id.
func (r *RaidResultRepository) RaidByID(ctx context.Context, id int64) (RaidRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, room_id, code, winner, started_at, ended_at,
		        duration_seconds, boss_damage, overkill, bars_defeated, created_at
		 FROM raids
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return RaidRecord{}, fmt.Errorf("querying raid %d: %w", id, err)
	}
	records, err := scanRaids(rows)
	if err != nil {
		return RaidRecord{}, err
	}
	if len(records) == 0 {
		return RaidRecord{}, ErrRaidNotFound
	}
	if err := r.attachPlayers(ctx, records); err != nil {
		return RaidRecord{}, err
	}
	return records[0], nil
}

func scanRaids(rows pgx.Rows) ([]RaidRecord, error) {
	defer rows.Close()

	var records []RaidRecord
	for rows.Next() {
		var (
			rec    RaidRecord
			winner string
		)
		if err := rows.Scan(
			&rec.ID, &rec.RoomID, &rec.Code, &winner,
			&rec.Summary.StartedAt, &rec.Summary.EndedAt,
			&rec.Summary.Duration, &rec.Summary.BossDamage,
			&rec.Summary.Overkill, &rec.Summary.BarsDefeated,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning raid: %w", err)
		}
		rec.Summary.Winner = raid.Outcome(winner)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// attachPlayers loads the player rows of every record, in rank order.
func (r *RaidResultRepository) attachPlayers(ctx context.Context, records []RaidRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int64, len(records))
	index := make(map[int64]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		index[rec.ID] = i
	}

	rows, err := r.db.Query(ctx,
		`SELECT raid_id, player_id, name, character_id, damage, healing, level, alive
		 FROM raid_players
		 WHERE raid_id = ANY($1)
		 ORDER BY raid_id, rank`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("listing raid players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raidID int64
			char   string
			p      raid.PlayerSummary
		)
		if err := rows.Scan(&raidID, &p.ID, &p.Name, &char, &p.Damage, &p.Healing, &p.Level, &p.Alive); err != nil {
			return fmt.Errorf("scanning raid player: %w", err)
		}
		p.Character = character.ID(char)
		i := index[raidID]
		records[i].Summary.Players = append(records[i].Summary.Players, p)
	}
	return rows.Err()
}
