package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	// GamesBucket holds one GameInfo per watched game, keyed by game id
	GamesBucket = "games"

	movesPrefix = "moves/"
)

var (
	// ErrJournalClosed is returned by every operation after Close
	ErrJournalClosed = errors.New("journal is closed")

	// ErrUnknownGame is returned for a game id that was never started
	ErrUnknownGame = errors.New("unknown game")
)

// GameInfo describes a watched game
type GameInfo struct {
	ID          string    `json:"id"`
	StartFEN    string    `json:"start_fen"`
	Perspective string    `json:"perspective"`
	Started     time.Time `json:"started"`
	Moves       int       `json:"moves"`
}

// Record is one detected move
type Record struct {
	Game      string    `json:"game"`
	Ply       int       `json:"ply"`
	UCI       string    `json:"uci"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	FEN       string    `json:"fen"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal persists detected moves in a BoltDB file
type Journal struct {
	db       *bbolt.DB
	dbPath   string
	mu       sync.Mutex
	isClosed bool
}

// OpenJournal opens or creates a journal file
func OpenJournal(dbPath string) (*Journal, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(GamesBucket)); err != nil {
			return fmt.Errorf("create games bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, dbPath: dbPath}, nil
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.dbPath
}

// StartGame registers a new game and returns its id
func (j *Journal) StartGame(startFEN, perspective string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return "", ErrJournalClosed
	}

	info := GameInfo{
		ID:          uuid.NewString(),
		StartFEN:    startFEN,
		Perspective: perspective,
		Started:     time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal game: %w", err)
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucket(movesBucket(info.ID)); err != nil {
			return fmt.Errorf("create moves bucket: %w", err)
		}
		return tx.Bucket([]byte(GamesBucket)).Put([]byte(info.ID), data)
	})
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Append stores a move under its ply number. Re-appending a ply overwrites it.
func (j *Journal) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return ErrJournalClosed
	}
	if rec.Ply < 1 {
		return fmt.Errorf("invalid ply: %d (must be >= 1)", rec.Ply)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		games := tx.Bucket([]byte(GamesBucket))
		infoData := games.Get([]byte(rec.Game))
		moves := tx.Bucket(movesBucket(rec.Game))
		if infoData == nil || moves == nil {
			return fmt.Errorf("%w: %s", ErrUnknownGame, rec.Game)
		}

		if err := moves.Put(plyKey(rec.Ply), data); err != nil {
			return err
		}

		var info GameInfo
		if err := json.Unmarshal(infoData, &info); err != nil {
			return fmt.Errorf("corrupt game info: %w", err)
		}
		info.Moves = countKeys(moves)
		updated, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return games.Put([]byte(rec.Game), updated)
	})
}

// Records returns the moves of a game in ply order
func (j *Journal) Records(game string) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return nil, ErrJournalClosed
	}

	records := []Record{}
	err := j.db.View(func(tx *bbolt.Tx) error {
		moves := tx.Bucket(movesBucket(game))
		if moves == nil {
			return fmt.Errorf("%w: %s", ErrUnknownGame, game)
		}
		return moves.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// Games lists all games, oldest first
func (j *Journal) Games() ([]GameInfo, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return nil, ErrJournalClosed
	}

	var games []GameInfo
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(GamesBucket)).ForEach(func(_, v []byte) error {
			var info GameInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("corrupt game info: %w", err)
			}
			games = append(games, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(games, func(a, b int) bool {
		return games[a].Started.Before(games[b].Started)
	})
	return games, nil
}

// Count returns the number of moves stored for a game
func (j *Journal) Count(game string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return 0, ErrJournalClosed
	}

	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		moves := tx.Bucket(movesBucket(game))
		if moves == nil {
			return fmt.Errorf("%w: %s", ErrUnknownGame, game)
		}
		n = countKeys(moves)
		return nil
	})
	return n, err
}

// Delete removes a game and its moves
func (j *Journal) Delete(game string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return ErrJournalClosed
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(movesBucket(game)); err != nil {
			if errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownGame, game)
			}
			return err
		}
		return tx.Bucket([]byte(GamesBucket)).Delete([]byte(game))
	})
}

// ExportJSON writes a game's moves as an indented JSON array
func (j *Journal) ExportJSON(game string, w io.Writer) error {
	records, err := j.Records(game)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClosed {
		return nil
	}

	j.isClosed = true
	return j.db.Close()
}

func movesBucket(game string) []byte {
	return []byte(movesPrefix + game)
}

func plyKey(ply int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(ply))
	return key
}

func countKeys(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}
