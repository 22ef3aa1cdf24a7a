package archive

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blasperez/Private-Chat/internal/apperr"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"id":"01ARZ3","kind":"text","content":"hi"}` + "\n")

	env, err := Encrypt(testKey(), plaintext)
	require.NoError(t, err)
	assert.Equal(t, AlgoAESGCM, env.Algorithm)

	// All fields are base64, suitable for a JSON envelope
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	require.NoError(t, err)
	assert.Len(t, tag, 16)

	got, err := Decrypt(testKey(), env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEnvelopeSurvivesJSON(t *testing.T) {
	env, err := Encrypt(testKey(), []byte("transcript"))
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	got, err := Decrypt(testKey(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("transcript"), got)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	env, err := Encrypt(testKey(), []byte("original transcript"))
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	ct[0] ^= 0xff
	env.Ciphertext = base64.StdEncoding.EncodeToString(ct)

	_, err = Decrypt(testKey(), env)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeIntegrity))
}

func TestDecryptRejectsTamperedTag(t *testing.T) {
	env, err := Encrypt(testKey(), []byte("original transcript"))
	require.NoError(t, err)

	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	require.NoError(t, err)
	tag[len(tag)-1] ^= 0x01
	env.Tag = base64.StdEncoding.EncodeToString(tag)

	_, err = Decrypt(testKey(), env)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeIntegrity))
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	env, err := Encrypt(testKey(), []byte("original transcript"))
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xff

	_, err = Decrypt(other, env)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeIntegrity))
}

func TestEncryptRequires256BitKey(t *testing.T) {
	_, err := Encrypt([]byte("short"), []byte("data"))
	require.Error(t, err)
}

func TestNoncesAreUnique(t *testing.T) {
	a, err := Encrypt(testKey(), []byte("same plaintext"))
	require.NoError(t, err)
	b, err := Encrypt(testKey(), []byte("same plaintext"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}
