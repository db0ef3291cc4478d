package postgres

import (
	"database/sql"
	"time"

	"carrental-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.ContractRepository
}

func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:                 db,
		ContractRepository: NewContractRepository(db, lockTimeout),
	}
}
