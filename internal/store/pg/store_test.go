package pg

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestCreditCommits(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("insert into stock").WithArgs("", "O+", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(int64(5)))
	mock.ExpectCommit()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		bal, err := tx.CreditStock(ctx, inventory.Key{Pool: inventory.Central, Group: blood.OPos}, 2)
		require.NoError(t, err)
		require.Equal(t, int64(5), bal)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitShortfallReportsBalance(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`update stock set units = units - \$3`).WithArgs("h1", "A-", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"units"}))
	mock.ExpectQuery("select units from stock").WithArgs("h1", "A-").
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(int64(3)))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		_, err := inventory.New(tx).Withdraw(ctx, inventory.HospitalPool("h1"), blood.ANeg, 4, inventory.Ref{})
		return err
	})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(3), short.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitStockRefusesNonEmptyCounter(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("where stock.units = 0").WithArgs("", "B+", int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"units"}))
	mock.ExpectCommit()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		ok, err := tx.InitStock(ctx, inventory.Key{Pool: inventory.Central, Group: blood.BPos}, 9)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRequestLocksAndRollsBack(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`from blood_requests where id=\$1 for update`).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "hospital_id", "blood_group", "units", "status", "reason", "created_at", "decided_at"}).
			AddRow("r1", "p1", "h1", "O+", int64(2), "Pending", "", created, nil))
	mock.ExpectQuery(`update stock set units = units - \$3`).WithArgs("h1", "O+", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"units"}))
	mock.ExpectQuery("select units from stock").WithArgs("h1", "O+").
		WillReturnRows(sqlmock.NewRows([]string{"units"}).AddRow(int64(1)))
	mock.ExpectRollback()

	eng := bank.New(s)
	_, err := eng.ApproveRequest(context.Background(), auth.Hospital("h1"), "r1")
	require.ErrorIs(t, err, bank.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViewDoesNotLock(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`from donors where id=\$1$`).WithArgs("d1").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.View(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		_, err := tx.Donor(ctx, "d1")
		return err
	})
	require.ErrorIs(t, err, bank.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDonorScanNormalizesDate(t *testing.T) {
	s, mock := newMock(t)
	last := time.Date(2025, 2, 3, 0, 0, 0, 0, time.FixedZone("X", 3600))
	mock.ExpectBegin()
	mock.ExpectQuery("from donors where id").WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "gender", "blood_group", "address", "age", "last_donation_date", "created_at"}).
			AddRow("d1", "Ann", "", "", "AB-", "", 41, last, last))
	mock.ExpectCommit()

	var d bank.Donor
	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		var err error
		d, err = tx.Donor(ctx, "d1")
		return err
	}))
	require.Equal(t, blood.ABNeg, d.BloodGroup)
	require.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), *d.LastDonationDate)
}

func TestTranslateDriverErrors(t *testing.T) {
	require.ErrorIs(t, translate(&pgconn.PgError{Code: pgErrUniqueViolation}, "hospital h1"), bank.ErrInvalidInput)
	require.ErrorIs(t, translate(&pgconn.PgError{Code: pgErrForeignKeyViolation}, "slot s1"), bank.ErrNotFound)
	require.ErrorIs(t, translate(sql.ErrNoRows, "donor d1"), bank.ErrNotFound)
	require.NoError(t, translate(nil, "x"))
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("delete from patients").WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx bank.Tx) error {
		return tx.DeletePatient(ctx, "p1")
	})
	require.ErrorIs(t, err, bank.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterWhere(t *testing.T) {
	var f filter
	require.Empty(t, f.where())
	f.eq("donor_id", "")
	f.eq("hospital_id", "h1")
	f.eq("state", "accepted")
	require.Equal(t, " where hospital_id = $1 and state = $2", f.where())
	require.Equal(t, []any{"h1", "accepted"}, f.args)
}

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(Migrations(), "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(Migrations(), "*.down.sql")
	require.NoError(t, err)
	require.Len(t, ups, 3)
	require.Len(t, downs, len(ups))

	seeds, err := fs.Glob(Seeds(), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
}
