package auditlog

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/bockstake/stakepool/pool"
)

func newMockRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &Recorder{db: gormDB}, mock, func() { sqlDB.Close() }
}

func TestRecorder_Emit_InsertsEventRow(t *testing.T) {
	recorder, mock, cleanup := newMockRecorder(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `pool_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorder.Emit(pool.StakeEvent{PoolID: "pool-0", TokenType: "S", User: "alice", StakeAmount: 100})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Emit_SwallowsDBErrors(t *testing.T) {
	recorder, mock, cleanup := newMockRecorder(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `pool_events`").WillReturnError(assertableErr{})
	mock.ExpectRollback()

	require.NotPanics(t, func() {
		recorder.Emit(pool.HarvestEvent{PoolID: "pool-0", IncentiveTokenType: "I", User: "alice", HarvestAmount: 10})
	})
}

type assertableErr struct{}

func (assertableErr) Error() string { return "forced failure" }

func TestEventRecord_TableName(t *testing.T) {
	require.Equal(t, "pool_events", EventRecord{}.TableName())
}
