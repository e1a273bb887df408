package repository

import (
	"context"
	"fmt"

	"github.com/pixelpond/tictactoe-rooms/internal/entity"
	"github.com/pixelpond/tictactoe-rooms/internal/repository/storage"
)

// HistoryRepository keeps a best-effort log of finished matches.
type HistoryRepository interface {
	Record(ctx context.Context, record *entity.MatchRecord) error
	Recent(ctx context.Context, limit int) ([]entity.MatchRecord, error)
}

type dbHistory struct {
	storage *storage.SQLiteStorage
}

func NewHistoryRepository(storage *storage.SQLiteStorage) HistoryRepository {
	return &dbHistory{
		storage: storage,
	}
}

func (that *dbHistory) Record(ctx context.Context, record *entity.MatchRecord) error {
	query := `INSERT INTO match_history (room_code, winner, player_x, player_o, finished_at) VALUES (?, ?, ?, ?, ?)`

	_, err := that.storage.Connection.ExecContext(ctx, query,
		record.RoomCode, record.Winner, record.PlayerX, record.PlayerO, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}

	return nil
}

func (that *dbHistory) Recent(ctx context.Context, limit int) ([]entity.MatchRecord, error) {
	query := `SELECT room_code, winner, player_x, player_o, finished_at
		FROM match_history ORDER BY finished_at DESC, id DESC LIMIT ?`

	rows, err := that.storage.Connection.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var records []entity.MatchRecord
	for rows.Next() {
		var record entity.MatchRecord
		if err = rows.Scan(&record.RoomCode, &record.Winner, &record.PlayerX, &record.PlayerO, &record.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read match history: %w", err)
	}

	return records, nil
}
