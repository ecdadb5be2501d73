package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

func TestUsers_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	u, err := users.Create(ctx, repository.CreateUserInput{Username: "jane", Email: "Jane@X.com"})
	require.NoError(t, err)
	require.True(t, u.IsActive)
	require.Equal(t, "jane@x.com", u.Email)

	_, err = users.Create(ctx, repository.CreateUserInput{Username: "jane", Email: "other@x.com"})
	require.ErrorIs(t, err, repository.ErrUsernameTaken)
	require.True(t, repository.IsConflict(err))

	_, err = users.Create(ctx, repository.CreateUserInput{Username: "jane2", Email: "JANE@x.com"})
	require.ErrorIs(t, err, repository.ErrEmailTaken)

	got, err := users.GetByEmail(ctx, " jane@X.COM ")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	ok, err := users.UsernameExists(ctx, "jane")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = users.GetByID(ctx, "missing")
	require.True(t, repository.IsNotFound(err))
}

func TestUsers_ConcurrentCreateSameUsername(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := users.Create(ctx, repository.CreateUserInput{Username: "johndoe", Email: fmt.Sprintf("j%d@x.com", i)})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, created)
}

func TestConnections_UpsertAndConstraints(t *testing.T) {
	ctx := context.Background()
	s := New()
	jane, err := s.Users().Create(ctx, repository.CreateUserInput{Username: "jane", Email: "jane@x.com"})
	require.NoError(t, err)
	bob, err := s.Users().Create(ctx, repository.CreateUserInput{Username: "bob", Email: "bob@x.com"})
	require.NoError(t, err)

	conns := s.Connections()
	first, err := conns.Upsert(ctx, repository.UpsertConnectionInput{UserID: jane.ID, Provider: "google", ProviderUserID: "g-1", AccessToken: "a1"})
	require.NoError(t, err)

	second, err := conns.Upsert(ctx, repository.UpsertConnectionInput{UserID: jane.ID, Provider: "google", ProviderUserID: "g-1", AccessToken: "a2"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "a2", second.AccessToken)

	_, err = conns.Upsert(ctx, repository.UpsertConnectionInput{UserID: bob.ID, Provider: "google", ProviderUserID: "g-1"})
	require.ErrorIs(t, err, repository.ErrConnectionTaken)

	_, err = conns.Upsert(ctx, repository.UpsertConnectionInput{UserID: "ghost", Provider: "google", ProviderUserID: "g-9"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := conns.GetByProviderSubject(ctx, "google", "g-1")
	require.NoError(t, err)
	require.Equal(t, jane.ID, got.UserID)

	list, err := conns.ListByUser(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestDeleteUser_CascadesConnections(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.Users().Create(ctx, repository.CreateUserInput{Username: "jane", Email: "jane@x.com"})
	require.NoError(t, err)
	_, err = s.Connections().Upsert(ctx, repository.UpsertConnectionInput{UserID: u.ID, Provider: "github", ProviderUserID: "42"})
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, u.ID))

	_, err = s.Connections().GetByProviderSubject(ctx, "github", "42")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, s.Connections().Delete(ctx, u.ID, "github"), repository.ErrNotFound)
}

func TestUsers_SetPasswordHash(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	u, err := users.Create(ctx, repository.CreateUserInput{Username: "oauthonly", Email: "o@x.com"})
	require.NoError(t, err)
	require.False(t, u.HasPassword())

	require.NoError(t, users.SetPasswordHash(ctx, u.ID, "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.HasPassword())

	require.NoError(t, users.SetPasswordHash(ctx, u.ID, ""))
	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.HasPassword())

	require.ErrorIs(t, users.SetPasswordHash(ctx, "missing", "x"), repository.ErrNotFound)
}
