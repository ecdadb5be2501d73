package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16, SaltLen: 8}

func TestHashVerify(t *testing.T) {
	h, err := Hash(fast, "correct horse 1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, Verify("correct horse 1", h))
	assert.False(t, Verify("correct horse 2", h))

	h2, err := Hash(fast, "correct horse 1")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "salt aleatoria")
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_Malformed(t *testing.T) {
	for _, phc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		assert.False(t, Verify("x", phc), phc)
	}
}

func TestPolicy_Check(t *testing.T) {
	bl, err := ReadBlacklist(strings.NewReader("# comunes\npassword123\n\nQwerty12345\n"))
	require.NoError(t, err)
	assert.Len(t, bl, 2)

	p := DefaultPolicy
	p.Blacklist = bl

	assert.NoError(t, p.Check("longenough42"))

	err = p.Check("short1")
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"too_short"}, pe.Reasons)

	err = p.Check("nodigitshere")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"missing_digit"}, pe.Reasons)

	err = p.Check("QWERTY12345")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"missing_lower", "blacklisted"}, pe.Reasons)
}
