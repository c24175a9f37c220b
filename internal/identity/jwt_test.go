package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrack/internal/domain"
	pkgerrors "caretrack/pkg/errors"
)

func newTestVerifier() *JWTVerifier {
	return NewJWTVerifier("test-signing-key", "caretrack", "caretrack-live")
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newTestVerifier()
	want := domain.Principal{ID: 17, Role: domain.RoleFamily, BoundClientID: 7}

	token, err := v.GenerateToken(want, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := newTestVerifier()
	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := newTestVerifier()
	token, err := v.GenerateToken(domain.Principal{ID: 3, Role: domain.RoleStaff}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	other := NewJWTVerifier("different-key", "caretrack", "caretrack-live")
	token, err := other.GenerateToken(domain.Principal{ID: 3, Role: domain.RoleStaff}, time.Minute)
	require.NoError(t, err)

	_, err = newTestVerifier().Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := newTestVerifier()
	token, err := v.GenerateToken(domain.Principal{ID: 3, Role: domain.Role("Superuser")}, time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := newTestVerifier()
	_, err := v.Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}
