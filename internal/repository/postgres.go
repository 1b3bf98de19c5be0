// Package repository содержит копию журнала пожертвований в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/pledge-service/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDuplicateRecord возвращается при повторной записи события с тем же идентификатором.
var ErrDuplicateRecord = errors.New("ledger record already exists")

const (
	maxLedgerConns = 4
	connectTimeout = 10 * time.Second
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository хранит записи журнала пожертвований в PostgreSQL.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	retryDelays []time.Duration
}

// NewPostgresRepository подключается к БД журнала и применяет недостающие миграции.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	poolCfg.MaxConns = maxLedgerConns

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger pool: %w", err)
	}

	if err := migrateLedger(connectCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool, retryDelays: defaultRetryDelays}, nil
}

// migrateLedger применяет миграции таблицы ledger_records.
func migrateLedger(ctx context.Context, pool *pgxpool.Pool) error {
	scripts, err := ledgerMigrations()
	if err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, scripts)
	if err != nil {
		return fmt.Errorf("ledger migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply ledger migrations: %w", err)
	}

	return nil
}

func ledgerMigrations() (fs.FS, error) {
	scripts, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("ledger migrations: %w", err)
	}
	return scripts, nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.retryDelays) {
			break
		}

		timer := time.NewTimer(r.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close освобождает соединения журнала.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// AppendLedgerRecord добавляет запись журнала. Таблица допускает только вставку.
func (r *PostgresRepository) AppendLedgerRecord(ctx context.Context, rec model.LedgerRecord) error {
	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO ledger_records
			 (id, recorded_at, donor_name, email, phone, auto_renew, start_date,
			  last_installment_date, monthly_amount, total_pledge, installments)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rec.EventID, rec.Timestamp, rec.DonorName, rec.Email, rec.Phone, rec.AutoRenew,
			rec.StartDate, rec.LastInstallmentDate, rec.MonthlyAmount, rec.TotalPledge, rec.Installments,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.EventID)
		}
		return fmt.Errorf("insert ledger record: %w", err)
	}

	return nil
}

// ListLedgerRecords возвращает историю записей журнала для адреса электронной почты.
func (r *PostgresRepository) ListLedgerRecords(ctx context.Context, email string) ([]model.LedgerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recorded_at, donor_name, email, phone, auto_renew, start_date,
		        last_installment_date, monthly_amount, total_pledge, installments
		 FROM ledger_records
		 WHERE email = $1
		 ORDER BY recorded_at, id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger records: %w", err)
	}
	defer rows.Close()

	var res []model.LedgerRecord
	for rows.Next() {
		var rec model.LedgerRecord
		if err := rows.Scan(
			&rec.EventID, &rec.Timestamp, &rec.DonorName, &rec.Email, &rec.Phone, &rec.AutoRenew,
			&rec.StartDate, &rec.LastInstallmentDate, &rec.MonthlyAmount, &rec.TotalPledge, &rec.Installments,
		); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		res = append(res, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
