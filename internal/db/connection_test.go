package db

import (
	"context"
	"testing"

	"github.com/kjannette/npt-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_BadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", PoolOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse dsn")
}

func TestConnect_Describe(t *testing.T) {
	// skips when no server is up
	testutil.SetupPool(t)

	p, err := Connect(context.Background(), testutil.DSN(), PoolOptions{MaxConns: 2, AppName: "npt-test"})
	require.NoError(t, err)
	defer p.Close()

	assert.EqualValues(t, 2, p.Config().MaxConns)

	info, err := Describe(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "UTC", info.TimeZone)
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, p.Config().ConnConfig.Database, info.Database)
	assert.Contains(t, info.String(), "database "+info.Database)
}
