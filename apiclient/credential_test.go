package apiclient

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialsRoundTrip(t *testing.T) {
	t.Parallel()

	var creds Credentials
	_, ok := creds.Get()
	assert.False(t, ok)

	creds.Set("t-1")
	token, ok := creds.Get()
	assert.True(t, ok)
	assert.Equal(t, "t-1", token)
	assert.Equal(t, "Bearer t-1", creds.authorization())

	creds.Clear()
	token, ok = creds.Get()
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Empty(t, creds.authorization())
}

func TestCredentialsAcceptAnyString(t *testing.T) {
	t.Parallel()

	var creds Credentials
	creds.Set("")
	token, ok := creds.Get()
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.Empty(t, creds.authorization(), "an empty token is never sent")
}

func TestClientCredentialsAreIndependent(t *testing.T) {
	t.Parallel()

	a, err := New(Config{BaseURL: "http://a.example", Token: "seed"})
	assert.NoError(t, err)
	b, err := New(Config{BaseURL: "http://b.example"})
	assert.NoError(t, err)

	token, ok := a.Credential()
	assert.True(t, ok)
	assert.Equal(t, "seed", token)
	_, ok = b.Credential()
	assert.False(t, ok)

	a.ClearCredential()
	b.SetCredential("other")
	_, ok = a.Credential()
	assert.False(t, ok)
	token, _ = b.Credential()
	assert.Equal(t, "other", token)
}

func TestCredentialsConcurrentAccess(t *testing.T) {
	t.Parallel()

	var creds Credentials
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			creds.Set("token")
		}()
		go func() {
			defer wg.Done()
			if token, ok := creds.Get(); ok {
				assert.Equal(t, "token", token)
			}
		}()
	}
	wg.Wait()
}
