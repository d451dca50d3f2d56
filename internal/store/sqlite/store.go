// Package sqlite provides a SQLite-backed Store implementation using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/sidebet"
	"github.com/treeline/discround/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  course_name   TEXT NOT NULL,
  created_by    TEXT NOT NULL,
  players       TEXT NOT NULL,
  hole_count    INTEGER NOT NULL,
  status        TEXT NOT NULL,
  skins_enabled INTEGER NOT NULL,
  skins_stake   INTEGER NOT NULL,
  created_at    INTEGER NOT NULL,
  completed_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scores (
  round_id  TEXT NOT NULL,
  player_id TEXT NOT NULL,
  hole      INTEGER NOT NULL,
  strokes   INTEGER NOT NULL,
  PRIMARY KEY (round_id, player_id, hole)
);
CREATE TABLE IF NOT EXISTS pars (
  round_id TEXT NOT NULL,
  hole     INTEGER NOT NULL,
  par      INTEGER NOT NULL,
  PRIMARY KEY (round_id, hole)
);
CREATE TABLE IF NOT EXISTS side_bets (
  id           TEXT PRIMARY KEY,
  round_id     TEXT NOT NULL,
  name         TEXT NOT NULL,
  description  TEXT NOT NULL,
  category     TEXT NOT NULL,
  stake        INTEGER NOT NULL,
  creator_id   TEXT NOT NULL,
  participants TEXT NOT NULL,
  hole_start   INTEGER NOT NULL,
  hole_end     INTEGER NOT NULL,
  status       TEXT NOT NULL,
  created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_side_bets_round ON side_bets (round_id);
CREATE TABLE IF NOT EXISTS settlements (
  bet_id     TEXT PRIMARY KEY,
  winners    TEXT NOT NULL,
  payouts    TEXT NOT NULL,
  settled_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS round_results (
  round_id TEXT PRIMARY KEY,
  result   TEXT NOT NULL
);
`

// Store persists engine state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and creates the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) SaveRound(ctx context.Context, rec *store.RoundRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO rounds (
		   id, name, course_name, created_by, players, hole_count, status,
		   skins_enabled, skins_stake, created_at, completed_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   course_name = excluded.course_name,
		   status = excluded.status,
		   completed_at = excluded.completed_at`,
		rec.ID, rec.Name, rec.CourseName, rec.CreatedBy, string(players),
		rec.HoleCount, rec.Status, boolToInt(rec.SkinsEnabled), rec.SkinsStake,
		toMillis(rec.CreatedAt), toMillis(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (s *Store) Round(ctx context.Context, roundID string) (*store.RoundRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, course_name, created_by, players, hole_count, status,
		        skins_enabled, skins_stake, created_at, completed_at
		 FROM rounds WHERE id = ?`, roundID)
	return scanRound(row)
}

func (s *Store) ListRounds(ctx context.Context) ([]*store.RoundRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, course_name, created_by, players, hole_count, status,
		        skins_enabled, skins_stake, created_at, completed_at
		 FROM rounds ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []*store.RoundRecord
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*store.RoundRecord, error) {
	var rec store.RoundRecord
	var players string
	var skinsEnabled int
	var createdAt, completedAt int64
	err := row.Scan(&rec.ID, &rec.Name, &rec.CourseName, &rec.CreatedBy,
		&players, &rec.HoleCount, &rec.Status, &skinsEnabled, &rec.SkinsStake,
		&createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "round not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan round: %w", err)
	}
	if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	rec.SkinsEnabled = skinsEnabled != 0
	rec.CreatedAt = fromMillis(createdAt)
	rec.CompletedAt = fromMillis(completedAt)
	return &rec, nil
}

func (s *Store) TransitionRoundStatus(ctx context.Context, roundID, from, to string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE rounds SET status = ? WHERE id = ? AND status = ?`, to, roundID, from)
	if err != nil {
		return fmt.Errorf("transition round status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition round status: %w", err)
	}
	if affected == 1 {
		return nil
	}
	rec, err := s.Round(ctx, roundID)
	if err != nil {
		return err
	}
	return errs.Newf(errs.InvalidState, "round is %s, expected %s", rec.Status, from)
}

func (s *Store) SaveScore(ctx context.Context, rec *store.ScoreRecord) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO scores (round_id, player_id, hole, strokes) VALUES (?, ?, ?, ?)
		 ON CONFLICT (round_id, player_id, hole) DO UPDATE SET strokes = excluded.strokes`,
		rec.RoundID, rec.PlayerID, rec.Hole, rec.Strokes)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *Store) ScoresByRound(ctx context.Context, roundID string) ([]*store.ScoreRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT round_id, player_id, hole, strokes FROM scores
		 WHERE round_id = ? ORDER BY player_id, hole`, roundID)
	if err != nil {
		return nil, fmt.Errorf("scores by round: %w", err)
	}
	defer rows.Close()

	var out []*store.ScoreRecord
	for rows.Next() {
		var rec store.ScoreRecord
		if err := rows.Scan(&rec.RoundID, &rec.PlayerID, &rec.Hole, &rec.Strokes); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) SavePar(ctx context.Context, rec *store.ParRecord) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO pars (round_id, hole, par) VALUES (?, ?, ?)
		 ON CONFLICT (round_id, hole) DO UPDATE SET par = excluded.par`,
		rec.RoundID, rec.Hole, rec.Par)
	if err != nil {
		return fmt.Errorf("save par: %w", err)
	}
	return nil
}

func (s *Store) ParsByRound(ctx context.Context, roundID string) ([]*store.ParRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT round_id, hole, par FROM pars WHERE round_id = ? ORDER BY hole`, roundID)
	if err != nil {
		return nil, fmt.Errorf("pars by round: %w", err)
	}
	defer rows.Close()

	var out []*store.ParRecord
	for rows.Next() {
		var rec store.ParRecord
		if err := rows.Scan(&rec.RoundID, &rec.Hole, &rec.Par); err != nil {
			return nil, fmt.Errorf("scan par: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) SideBet(ctx context.Context, betID string) (*sidebet.SideBet, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, round_id, name, description, category, stake, creator_id,
		        participants, hole_start, hole_end, status, created_at
		 FROM side_bets WHERE id = ?`, betID)
	return scanSideBet(row)
}

func (s *Store) SideBetsByRound(ctx context.Context, roundID string) ([]*sidebet.SideBet, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, round_id, name, description, category, stake, creator_id,
		        participants, hole_start, hole_end, status, created_at
		 FROM side_bets WHERE round_id = ? ORDER BY created_at DESC, id`, roundID)
	if err != nil {
		return nil, fmt.Errorf("side bets by round: %w", err)
	}
	defer rows.Close()

	var out []*sidebet.SideBet
	for rows.Next() {
		bet, err := scanSideBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bet)
	}
	return out, rows.Err()
}

func scanSideBet(row rowScanner) (*sidebet.SideBet, error) {
	var bet sidebet.SideBet
	var participants string
	var createdAt int64
	err := row.Scan(&bet.ID, &bet.RoundID, &bet.Name, &bet.Description,
		&bet.Category, &bet.Stake, &bet.CreatorID, &participants,
		&bet.HoleStart, &bet.HoleEnd, &bet.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "side bet not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan side bet: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &bet.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	bet.CreatedAt = fromMillis(createdAt)
	return &bet, nil
}

func (s *Store) SaveSideBet(ctx context.Context, bet *sidebet.SideBet) error {
	participants, err := json.Marshal(bet.Participants)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO side_bets (
		   id, round_id, name, description, category, stake, creator_id,
		   participants, hole_start, hole_end, status, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   status = excluded.status`,
		bet.ID, bet.RoundID, bet.Name, bet.Description, string(bet.Category),
		bet.Stake, bet.CreatorID, string(participants), bet.HoleStart,
		bet.HoleEnd, string(bet.Status), toMillis(bet.CreatedAt))
	if err != nil {
		return fmt.Errorf("save side bet: %w", err)
	}
	return nil
}

func (s *Store) Settlement(ctx context.Context, betID string) (*sidebet.Settlement, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT bet_id, winners, payouts, settled_at FROM settlements WHERE bet_id = ?`, betID)

	var settlement sidebet.Settlement
	var winners, payouts string
	var settledAt int64
	err := row.Scan(&settlement.BetID, &winners, &payouts, &settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "settlement not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan settlement: %w", err)
	}
	if err := json.Unmarshal([]byte(winners), &settlement.Winners); err != nil {
		return nil, fmt.Errorf("decode winners: %w", err)
	}
	if err := json.Unmarshal([]byte(payouts), &settlement.Payouts); err != nil {
		return nil, fmt.Errorf("decode payouts: %w", err)
	}
	settlement.SettledAt = fromMillis(settledAt)
	return &settlement, nil
}

func (s *Store) SaveSettlement(ctx context.Context, settlement *sidebet.Settlement) error {
	winners, err := json.Marshal(settlement.Winners)
	if err != nil {
		return fmt.Errorf("encode winners: %w", err)
	}
	payouts, err := json.Marshal(settlement.Payouts)
	if err != nil {
		return fmt.Errorf("encode payouts: %w", err)
	}
	// Settlements are immutable: the first write wins and re-settlement is
	// served from this record.
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO settlements (bet_id, winners, payouts, settled_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (bet_id) DO NOTHING`,
		settlement.BetID, string(winners), string(payouts), toMillis(settlement.SettledAt))
	if err != nil {
		return fmt.Errorf("save settlement: %w", err)
	}
	return nil
}

func (s *Store) SaveCompletionResult(ctx context.Context, roundID string, result *round.CompletionResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode completion result: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO round_results (round_id, result) VALUES (?, ?)
		 ON CONFLICT (round_id) DO NOTHING`,
		roundID, string(encoded))
	if err != nil {
		return fmt.Errorf("save completion result: %w", err)
	}
	return nil
}

func (s *Store) CompletionResult(ctx context.Context, roundID string) (*round.CompletionResult, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT result FROM round_results WHERE round_id = ?`, roundID)

	var encoded string
	err := row.Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "completion result not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan completion result: %w", err)
	}
	var result round.CompletionResult
	if err := json.Unmarshal([]byte(encoded), &result); err != nil {
		return nil, fmt.Errorf("decode completion result: %w", err)
	}
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ store.Store = (*Store)(nil)
