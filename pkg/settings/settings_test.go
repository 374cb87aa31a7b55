package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObfuscateRoundTrip(t *testing.T) {
	cases := []string{"", "hunter2", "a very long password with spaces and symbols !@#$%^&*()"}
	for _, pw := range cases {
		obf := ObfuscatePassword(pw)
		if pw != "" {
			assert.NotEqual(t, pw, obf, "obfuscated form must not equal the plaintext")
		}
		assert.Equal(t, pw, DeobfuscatePassword(obf))
	}
}

func TestDeobfuscateMalformedInput(t *testing.T) {
	assert.Equal(t, "", DeobfuscatePassword("not valid base64!!"))
	assert.Equal(t, "", DeobfuscatePassword(""))
}

func TestLoadMissingFileYieldsZeroValue(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	want := Settings{
		Server:             "pbx.example.com",
		User:               "alice",
		PasswordObfuscated: ObfuscatePassword("s3cret"),
	}
	require.NoError(t, Save(want))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "s3cret", DeobfuscatePassword(got.PasswordObfuscated))
}
