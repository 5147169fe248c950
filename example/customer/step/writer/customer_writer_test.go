package writer

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/example/customer/domain/entity"
	"customerbatch/pkg/batch/database"
)

func TestCustomerWriterSavesEachCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	conn := database.NewSQLDBAdapter(db, "postgres")

	w, err := NewCustomerWriter(conn)
	require.NoError(t, err)

	insert := regexp.QuoteMeta("INSERT INTO customers")
	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(1, "Ada", "", "", "", "", "", "").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(2, "Alan", "", "", "", "", "", "").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tx, []*entity.Customer{{ID: 1, FirstName: "Ada"}, {ID: 2, FirstName: "Alan"}}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCustomerWriterRequiresConnection(t *testing.T) {
	_, err := NewCustomerWriter(nil)
	assert.Error(t, err)
}
