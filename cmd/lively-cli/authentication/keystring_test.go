package authentication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestTokenRoundTrip(t *testing.T) {
	keyring.MockInit()

	_, err := GetToken()
	assert.ErrorIs(t, err, ErrNoCredentials)

	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, StoreToken(&StoredCredentials{Token: "abc", Realm: "http://localhost:8090", SavedAt: saved}))

	creds, err := GetToken()
	require.NoError(t, err)
	assert.Equal(t, "abc", creds.Token)
	assert.Equal(t, "http://localhost:8090", creds.Realm)
	assert.True(t, saved.Equal(creds.SavedAt))

	require.NoError(t, DeleteToken())
	assert.ErrorIs(t, DeleteToken(), ErrNoCredentials)
}
