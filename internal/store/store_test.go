package store

import (
	"context"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	require.Equal(t, "memory", s.Driver)
	require.NotNil(t, s.Users)
	require.NotNil(t, s.Connections)
	require.Nil(t, s.States)
	require.NoError(t, s.Ping(context.Background()))
	s.Close()
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres"})
	require.ErrorIs(t, err, repository.ErrNoDatabase)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	require.Error(t, err)
}
