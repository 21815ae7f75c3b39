package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance/internal/core"
)

func openTestGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "finance.db")
	g, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g, path
}

func TestOpen_InitializeSchemaIsIdempotent(t *testing.T) {
	g, path := openTestGateway(t)
	require.NoError(t, g.InitializeSchema())

	// A second gateway over the same file must not fail on an existing schema.
	again, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestSession_CreateListGetDelete(t *testing.T) {
	g, _ := openTestGateway(t)
	ctx := context.Background()

	var salary, rent core.Transaction
	err := g.WithSession(ctx, func(s *Session) error {
		var err error
		salary, err = s.Create(ctx, core.TransactionCreate{Type: core.Income, Category: "salary", Amount: 5000, Date: core.NewDate(2024, 1, 10)})
		if err != nil {
			return err
		}
		rent, err = s.Create(ctx, core.TransactionCreate{Type: core.Expense, Category: "rent", Amount: 1500, Date: core.NewDate(2024, 1, 15)})
		return err
	})
	require.NoError(t, err)

	assert.NotZero(t, salary.ID)
	assert.Greater(t, rent.ID, salary.ID)
	assert.Equal(t, core.Income, salary.Type)
	assert.Equal(t, "2024-01-15", rent.Date.String())

	err = g.WithSession(ctx, func(s *Session) error {
		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, salary, items[0])
		assert.Equal(t, rent, items[1])

		got, err := s.Get(ctx, rent.ID)
		require.NoError(t, err)
		assert.Equal(t, rent, got)

		require.NoError(t, s.Delete(ctx, rent.ID))
		_, err = s.Get(ctx, rent.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, rent.ID), core.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestSession_ListEmptyIsNotNil(t *testing.T) {
	g, _ := openTestGateway(t)
	ctx := context.Background()

	err := g.WithSession(ctx, func(s *Session) error {
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSession_RollsBackOnError(t *testing.T) {
	g, _ := openTestGateway(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := g.WithSession(ctx, func(s *Session) error {
		_, err := s.Create(ctx, core.TransactionCreate{Type: core.Expense, Category: "food", Amount: 10, Date: core.NewDate(2024, 2, 1)})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assertRowCount(t, g, 0)
}

func TestWithSession_RollsBackOnPanic(t *testing.T) {
	g, _ := openTestGateway(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = g.WithSession(ctx, func(s *Session) error {
			_, err := s.Create(ctx, core.TransactionCreate{Type: core.Expense, Category: "food", Amount: 10, Date: core.NewDate(2024, 2, 1)})
			require.NoError(t, err)
			panic("unexpected")
		})
	})

	assertRowCount(t, g, 0)
}

func TestGateway_Ping(t *testing.T) {
	g, _ := openTestGateway(t)
	require.NoError(t, g.Ping(context.Background()))
}

func TestDateValue_Scan(t *testing.T) {
	var d DateValue
	require.NoError(t, d.Scan("2024-03-05"))
	assert.Equal(t, "2024-03-05", core.Date{Time: d.Time}.String())

	require.NoError(t, d.Scan([]byte("2024-03-06T00:00:00Z")))
	assert.Equal(t, "2024-03-06", core.Date{Time: d.Time}.String())

	require.NoError(t, d.Scan(core.NewDate(2024, 3, 7).Time))
	assert.Equal(t, "2024-03-07", core.Date{Time: d.Time}.String())

	assert.Error(t, d.Scan(nil))
	assert.Error(t, d.Scan(42))
	assert.Error(t, d.Scan("not a date"))
}

func assertRowCount(t *testing.T, g *Gateway, want int) {
	t.Helper()
	ctx := context.Background()
	err := g.WithSession(ctx, func(s *Session) error {
		items, err := s.List(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, items, want)
		return nil
	})
	require.NoError(t, err)
}
