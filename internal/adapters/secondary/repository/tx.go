package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasnotes/post-service/internal/core/ports"
)

// TxManager ouvre les unités de travail sur le pool pgx.
// Isolation : read-committed (défaut PostgreSQL) suffit au contrat.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

var _ ports.TxManager = (*TxManager)(nil)

// WithinTx exécute fn dans une transaction. Toute erreur de fn ou du commit
// déclenche le rollback avant de remonter ; jamais d'état partiel visible.
func (m *TxManager) WithinTx(ctx context.Context, fn func(uow ports.UnitOfWork) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	// Rollback après commit est un no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}
	return nil
}

// unitOfWork lie les dépôts à une même pgx.Tx.
type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Posts() ports.PostRepository {
	return &PostRepo{db: u.tx}
}

func (u *unitOfWork) Categories() ports.CategoryLinker {
	return &CategoryLinker{db: u.tx}
}
