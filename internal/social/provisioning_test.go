package social

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallbackRe = regexp.MustCompile(`^user_[0-9a-f]{8}$`)

func TestSanitizeUsername(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"John.Doe", "johndoe"},
		{"  Mary-Jane_99 ", "mary-jane_99"},
		{"ÁLVARO", "alvaro"},
		{"José Müller", "josemuller"},
		{"Ørjan Ødegård", "orjanodegard"},
		{"Zoë", "zoe"},
		{"abc", "abc"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeUsername(tc.in), tc.in)
	}

	long := SanitizeUsername(strings.Repeat("a", 80))
	assert.Len(t, long, 50)

	for _, in := range []string{"", "ab", "!!", "é"} {
		assert.Regexp(t, fallbackRe, SanitizeUsername(in), in)
	}

	cjk := SanitizeUsername("李小龙")
	assert.Regexp(t, `^[a-z0-9_-]{3,50}$`, cjk)
}

func TestGenerateCandidate(t *testing.T) {
	assert.Equal(t, "newuser", GenerateCandidate("new.user@example.com", "Someone Else"))
	assert.Equal(t, "janedoe", GenerateCandidate("x@example.com", "Jane Doe"))
	assert.Equal(t, "janedoe", GenerateCandidate("", "Jane Doe"))
	assert.Equal(t, "zoe", GenerateCandidate("", "Zoë"))
	assert.Equal(t, "josemuller", GenerateCandidate("josé.müller@example.com", ""))
	assert.Regexp(t, fallbackRe, GenerateCandidate("", ""))
}

func TestEnsureUnique(t *testing.T) {
	ctx := context.Background()
	taken := map[string]bool{"johndoe": true, "johndoe1": true}
	name, err := EnsureUnique(ctx, "johndoe", func(_ context.Context, n string) (bool, error) {
		return taken[n], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "johndoe2", name)

	free, err := EnsureUnique(ctx, "alice", func(context.Context, string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, "alice", free)
}

func TestEnsureUnique_Exhausted(t *testing.T) {
	calls := 0
	_, err := EnsureUnique(context.Background(), "busy", func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrUsernameGenerationExhausted)
	assert.Equal(t, MaxUsernameAttempts, calls)
}

func TestEnsureUnique_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := EnsureUnique(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCandidateAt_KeepsMaxLength(t *testing.T) {
	base := strings.Repeat("a", 50)
	got := candidateAt(base, 123)
	assert.Len(t, got, 50)
	assert.True(t, strings.HasSuffix(got, "123"))
	assert.Equal(t, base, candidateAt(base, 0))
}

func TestCreateUserFromOAuth(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProvisioner(st.Users())

	u, err := p.CreateUserFromOAuth(ctx, &providers.UserInfo{ProviderUserID: "g-42", Email: "New.User@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "newuser", u.Username)
	assert.Equal(t, "new.user@example.com", u.Email)
	assert.False(t, u.HasPassword())
	assert.True(t, u.IsActive)

	u2, err := p.CreateUserFromOAuth(ctx, &providers.UserInfo{ProviderUserID: "gh-1", Email: "newuser@other.org"})
	require.NoError(t, err)
	assert.Equal(t, "newuser1", u2.Username)
}

func TestCreateUserFromOAuth_EmailPolicy(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProvisioner(st.Users())

	_, err := p.CreateUserFromOAuth(ctx, &providers.UserInfo{ProviderUserID: "1", Name: "No Mail"})
	assert.ErrorIs(t, err, ErrProviderEmailMissing)

	_, err = st.Users().Create(ctx, repository.CreateUserInput{Username: "taken", Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = p.CreateUserFromOAuth(ctx, &providers.UserInfo{ProviderUserID: "2", Email: "DUP@example.com"})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

// racyUsers simula un existence check que siempre llega tarde: la unicidad
// queda en manos del Create.
type racyUsers struct {
	repository.UserRepository
}

func (racyUsers) UsernameExists(context.Context, string) (bool, error) { return false, nil }

// collidingUsers rechaza todo insert por username, como si otra réplica
// ganara siempre la carrera.
type collidingUsers struct {
	repository.UserRepository
	creates int
}

func (*collidingUsers) UsernameExists(context.Context, string) (bool, error) { return false, nil }

func (c *collidingUsers) Create(context.Context, repository.CreateUserInput) (*repository.User, error) {
	c.creates++
	return nil, repository.ErrUsernameTaken
}

func TestCreateUserFromOAuth_InsertConflictsShareAttemptCap(t *testing.T) {
	users := &collidingUsers{UserRepository: memory.New().Users()}
	p := NewProvisioner(users)

	_, err := p.CreateUserFromOAuth(context.Background(), &providers.UserInfo{Email: "busy@example.com"})
	assert.ErrorIs(t, err, ErrUsernameGenerationExhausted)
	assert.Equal(t, MaxUsernameAttempts, users.creates)
}

func TestCreateUserFromOAuth_ConcurrentSameCandidate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	p := NewProvisioner(racyUsers{st.Users()})

	const n = 20
	names := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := p.CreateUserFromOAuth(ctx, &providers.UserInfo{
				ProviderUserID: fmt.Sprintf("sub-%d", i),
				Email:          fmt.Sprintf("johndoe@mail%d.example.com", i),
				Name:           "John Doe",
			})
			if assert.NoError(t, err) {
				names[i] = u.Username
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, name := range names {
		assert.False(t, seen[name], "duplicate username %q", name)
		seen[name] = true
	}
	assert.Len(t, seen, n)
}
