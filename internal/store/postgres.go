package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gridrow/tictactoe-backend/internal/model"
)

// pg is the durable Store. The board and move log live in JSON columns via
// gorm's json serializer; optimistic concurrency rides on the version
// column.
type pg struct {
	db  *gorm.DB
	log *zap.Logger
}

func OpenPostgres(dsn string, lg *zap.Logger) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&model.Player{}, &model.Game{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &pg{db: db, log: lg}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func (s *pg) InsertPlayer(ctx context.Context, p *model.Player) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *pg) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *pg) GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error) {
	var p model.Player
	if err := s.db.WithContext(ctx).First(&p, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *pg) UpdateUsername(ctx context.Context, id, username string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Player{}).Where("id = ?", id).Update("username", username)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&model.Game{}).Where("player_x_id = ?", id).
			Update("player_x_username", username).Error; err != nil {
			return err
		}
		return tx.Model(&model.Game{}).Where("player_o_id = ? AND mode = ?", id, model.ModeOnline).
			Update("player_o_username", username).Error
	}))
}

func (s *pg) SearchPlayers(ctx context.Context, query string, limit int) ([]*model.Player, error) {
	var out []*model.Player
	q := s.db.WithContext(ctx).Where("username ILIKE ?", "%"+query+"%").Order("username")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *pg) InsertGame(ctx context.Context, g *model.Game) error {
	return translate(s.db.WithContext(ctx).Create(g).Error)
}

func (s *pg) UpdateGame(ctx context.Context, g *model.Game, expectedVersion int) error {
	res := s.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND version = ?", g.ID, expectedVersion).
		Select("*").Omit("id", "created_at").
		Updates(g)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.Game{}).Where("id = ?", g.ID).Count(&n).Error; err != nil {
			return translate(err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleWrite
	}
	return nil
}

func (s *pg) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *pg) GetGameByCode(ctx context.Context, code string) (*model.Game, error) {
	var g model.Game
	if err := s.db.WithContext(ctx).First(&g, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *pg) ListWaiting(ctx context.Context) ([]*model.Game, error) {
	var out []*model.Game
	err := s.db.WithContext(ctx).
		Where("status = ? AND mode = ?", model.StatusWaiting, model.ModeOnline).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *pg) ListCompletedByPlayer(ctx context.Context, playerID string, limit int) ([]*model.Game, error) {
	var out []*model.Game
	q := s.db.WithContext(ctx).
		Where("status = ? AND (player_x_id = ? OR player_o_id = ?)", model.StatusCompleted, playerID, playerID).
		Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}
