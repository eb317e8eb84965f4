package repository

import (
	"context"
	"database/sql"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"gorm.io/gorm"
)

// Store is the relational domain.Store. Callbacks passed to RunInTransaction must only
// use the repository they receive: on sqlite the pool holds a single connection, so a
// call through the outer Store inside a callback blocks forever.
type Store struct {
	*DefaultMarketRepository
	txOptions []*sql.TxOptions
}

func NewStore(db *gorm.DB) *Store {
	s := &Store{DefaultMarketRepository: NewDefaultMarketRepository(db)}
	if db.Dialector.Name() == "postgres" {
		s.txOptions = []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return s
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewDefaultMarketRepository(tx))
	}, s.txOptions...)
	return wrapErr(err, "transaction")
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ domain.Store = (*Store)(nil)
