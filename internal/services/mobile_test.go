package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pedalsync/linkgate/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() *core.ExternalIdentity {
	return &core.ExternalIdentity{
		Provider:   "google",
		ProviderID: "subject-123",
		Email:      "rider@example.com",
		Name:       "Rider",
		Picture:    "https://example.com/rider.png",
	}
}

func TestMobileSignIn_WithDevice(t *testing.T) {
	verifier := &fakeVerifier{identity: testIdentity()}
	env := newTestEnv(t, verifier)
	ctx := context.Background()

	result, err := env.flow.SignInWithIDToken(ctx, "id-token", "phone-00000001", "")
	require.NoError(t, err)
	assert.Equal(t, "rider@example.com", result.User.Email)
	assert.NotEmpty(t, result.User.ID)

	devices, err := env.registry.ListDevices(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "phone-00000001", devices[0].ID)
	assert.Equal(t, "Head unit", devices[0].Name)

	_, err = env.tokens.Refresh(ctx, result.Tokens.RefreshToken, "")
	require.NoError(t, err)

	again, err := env.flow.SignInWithIDToken(ctx, "id-token", "", "")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID, "the provider subject maps to one account")
	assert.Equal(t, 2, verifier.calls)
}

func TestMobileSignIn_WithoutDevice(t *testing.T) {
	env := newTestEnv(t, &fakeVerifier{identity: testIdentity()})
	ctx := context.Background()

	result, err := env.flow.SignInWithIDToken(ctx, "id-token", "", "ignored")
	require.NoError(t, err)

	devices, err := env.registry.ListDevices(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestMobileSignIn_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		verifier := &fakeVerifier{identity: testIdentity()}
		env := newTestEnv(t, verifier)

		_, err := env.flow.SignInWithIDToken(ctx, "  ", "", "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Zero(t, verifier.calls)
	})

	t.Run("bad device id", func(t *testing.T) {
		verifier := &fakeVerifier{identity: testIdentity()}
		env := newTestEnv(t, verifier)

		_, err := env.flow.SignInWithIDToken(ctx, "id-token", "dev-1", "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Zero(t, verifier.calls)
	})

	t.Run("token rejected", func(t *testing.T) {
		env := newTestEnv(t, &fakeVerifier{err: fmt.Errorf("%w: audience mismatch", core.ErrIDTokenRejected)})

		_, err := env.flow.SignInWithIDToken(ctx, "id-token", "", "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("provider down", func(t *testing.T) {
		env := newTestEnv(t, &fakeVerifier{err: errors.New("connection refused")})

		_, err := env.flow.SignInWithIDToken(ctx, "id-token", "", "")
		assert.ErrorIs(t, err, ErrIdentityProvider)
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.flow.SignInWithIDToken(ctx, "id-token", "", "")
		assert.ErrorIs(t, err, ErrIdentityProvider)
	})
}
