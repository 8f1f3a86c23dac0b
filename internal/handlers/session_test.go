package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/pedalsync/linkgate/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "user-00000001")
	linked := ts.linkDevice(t, "user-00000001", testDeviceID)

	t.Run("issues a new access token", func(t *testing.T) {
		ts.clock.Advance(time.Minute)
		res := ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": linked.RefreshToken},
			withHeader(HeaderDeviceID, testDeviceID))
		require.Equal(t, http.StatusOK, res.status)

		var grant struct {
			AccessToken  string `json:"access_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
			RefreshToken string `json:"refresh_token"`
		}
		res.data(t, &grant)
		assert.NotEmpty(t, grant.AccessToken)
		assert.NotEqual(t, linked.AccessToken, grant.AccessToken)
		assert.Equal(t, "Bearer", grant.TokenType)
		assert.Equal(t, 900, grant.ExpiresIn)
		assert.Empty(t, grant.RefreshToken, "refresh tokens are not rotated")
	})

	t.Run("missing token", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "  "})
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "invalid_request", res.errorCode())
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": linked.AccessToken})
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "invalid_token", res.errorCode())
	})

	t.Run("garbage", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "not-a-jwt"})
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "invalid_token", res.errorCode())
	})
}

func TestRefresh_AfterUnlinkReportsDeviceRevoked(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "user-00000001")
	linked := ts.linkDevice(t, "user-00000001", testDeviceID)

	res := ts.do(t, http.MethodDelete, "/auth/devices/"+testDeviceID, nil, withBearer(linked.AccessToken))
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": linked.RefreshToken},
		withHeader(HeaderDeviceID, testDeviceID))
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "DEVICE_REVOKED", res.errorCode())
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "user-00000001")
	linked := ts.linkDevice(t, "user-00000001", testDeviceID)

	var out struct {
		Revoked bool `json:"revoked"`
	}

	res := ts.do(t, http.MethodPost, "/auth/logout", gin.H{"refresh_token": linked.RefreshToken})
	require.Equal(t, http.StatusOK, res.status)
	res.data(t, &out)
	assert.True(t, out.Revoked)

	// Logging out again is not an error.
	res = ts.do(t, http.MethodPost, "/auth/logout", gin.H{"refresh_token": linked.RefreshToken})
	require.Equal(t, http.StatusOK, res.status)
	res.data(t, &out)
	assert.False(t, out.Revoked)

	res = ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": linked.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "invalid_token", res.errorCode())

	res = ts.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "invalid_request", res.errorCode())
}

func TestLogoutAll(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "user-00000001")
	first := ts.linkDevice(t, "user-00000001", testDeviceID)
	second := ts.linkDevice(t, "user-00000001", "dev-00000002")

	res := ts.do(t, http.MethodPost, "/auth/logout/all", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "invalid_token", res.errorCode())
	assert.NotEmpty(t, res.header.Get("WWW-Authenticate"))

	res = ts.do(t, http.MethodPost, "/auth/logout/all", nil, withBearer(first.AccessToken))
	require.Equal(t, http.StatusOK, res.status)
	var out struct {
		RevokedTokens int `json:"revoked_tokens"`
	}
	res.data(t, &out)
	assert.Equal(t, 2, out.RevokedTokens)

	for _, refresh := range []string{first.RefreshToken, second.RefreshToken} {
		res = ts.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refresh})
		assert.Equal(t, http.StatusUnauthorized, res.status)
	}
}

func TestMobileSignIn(t *testing.T) {
	t.Run("with device", func(t *testing.T) {
		ts := newTestServer(t)

		res := ts.do(t, http.MethodPost, "/auth/mobile", gin.H{
			"id_token":    "google-id-token",
			"device_id":   testDeviceID,
			"device_name": "Phone",
		})
		require.Equal(t, http.StatusOK, res.status)
		var tokens tokenData
		res.data(t, &tokens)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, "rider@example.com", tokens.User.Email)

		res = ts.do(t, http.MethodGet, "/auth/devices", nil, withBearer(tokens.AccessToken))
		require.Equal(t, http.StatusOK, res.status)
		var list struct {
			Devices []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"devices"`
		}
		res.data(t, &list)
		require.Len(t, list.Devices, 1)
		assert.Equal(t, testDeviceID, list.Devices[0].ID)
		assert.Equal(t, "Phone", list.Devices[0].Name)
	})

	t.Run("without device", func(t *testing.T) {
		ts := newTestServer(t)

		res := ts.do(t, http.MethodPost, "/auth/mobile", gin.H{"id_token": "google-id-token"})
		require.Equal(t, http.StatusOK, res.status)
		var tokens tokenData
		res.data(t, &tokens)

		res = ts.do(t, http.MethodGet, "/auth/devices", nil, withBearer(tokens.AccessToken))
		require.Equal(t, http.StatusOK, res.status)
		assert.JSONEq(t, `{"devices":[]}`, string(res.body.Data))
	})

	tests := []struct {
		name       string
		body       gin.H
		verifyErr  error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing id token",
			body:       gin.H{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "invalid device id",
			body:       gin.H{"id_token": "t", "device_id": "short"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "token rejected",
			body:       gin.H{"id_token": "t"},
			verifyErr:  fmt.Errorf("%w: audience mismatch", core.ErrIDTokenRejected),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_token",
		},
		{
			name:       "provider unreachable",
			body:       gin.H{"id_token": "t"},
			verifyErr:  errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "identity_provider_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.verifier.err = tt.verifyErr

			res := ts.do(t, http.MethodPost, "/auth/mobile", tt.body)
			assert.Equal(t, tt.wantStatus, res.status)
			assert.Equal(t, tt.wantCode, res.errorCode())
		})
	}
}
