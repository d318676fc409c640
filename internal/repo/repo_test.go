package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dictat/internal/domain"
)

// dryRun 不连数据库，只收集生成的 SQL
func dryRun(t *testing.T) (*gorm.DB, func() []string) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=dictat dbname=dictat sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var sqls []string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		sqls = append(sqls, tx.Statement.SQL.String())
	}))
	return db, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), sqls...)
	}
}

func TestDictationRepo_ListOrdering(t *testing.T) {
	t.Parallel()
	db, captured := dryRun(t)
	r := NewDictationRepo(db)

	_, _, err := r.List(context.Background(), domain.DictationFilter{VisibleToSecretary: "s1", Priority: domain.PriorityHigh})
	require.NoError(t, err)

	sqls := captured()
	require.Len(t, sqls, 2)
	assert.Contains(t, sqls[0], "count(*)")
	assert.NotContains(t, sqls[0], "ORDER BY")
	assert.Contains(t, sqls[1], "secretary_id IS NULL")
	assert.Contains(t, sqls[1], "ORDER BY "+priorityRank+" DESC,created_at DESC")
	assert.Contains(t, sqls[1], `"deleted_at" IS NULL`)
}

func TestDictationRepo_QueueOrdering(t *testing.T) {
	t.Parallel()
	db, captured := dryRun(t)
	r := NewDictationRepo(db)

	_, _, err := r.Queue(context.Background(), 0, 10)
	require.NoError(t, err)

	sqls := captured()
	require.Len(t, sqls, 2)
	assert.Contains(t, sqls[1], "ORDER BY "+priorityRank+" DESC,created_at ASC")
}

func TestDictationRepo_GetForUpdateLocksInTx(t *testing.T) {
	t.Parallel()
	db, captured := dryRun(t)
	r := NewDictationRepo(db)

	ctx := context.WithValue(context.Background(), txKey{}, db)
	_, _ = r.GetForUpdate(ctx, "d1")
	_, _ = r.GetForUpdate(context.Background(), "d1")

	sqls := captured()
	require.Len(t, sqls, 2)
	assert.Contains(t, sqls[0], "FOR UPDATE")
	assert.NotContains(t, sqls[1], "FOR UPDATE")
}

func TestMapErr(t *testing.T) {
	t.Parallel()
	assert.NoError(t, mapErr(nil, "x"))
	assert.ErrorIs(t, mapErr(gorm.ErrRecordNotFound, "dictation"), domain.ErrNotFound)
	assert.ErrorIs(t, mapErr(gorm.ErrDuplicatedKey, "user"), domain.ErrAlreadyExists)
	assert.ErrorIs(t, mapErr(fmt.Errorf(`ERROR: duplicate key value violates unique constraint "idx_transcriptions_dictation_id"`), "t"), domain.ErrAlreadyExists)
	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other, "x"))
}

func TestPageLimit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 20, pageLimit(0))
	assert.Equal(t, 20, pageLimit(1000))
	assert.Equal(t, 50, pageLimit(50))
}
