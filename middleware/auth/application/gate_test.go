package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-gateway/middleware/auth/domain"
)

// tokens fixos: token -> identidade
type mapValidator struct {
	users map[string]*domain.Identity
	calls int
}

func (v *mapValidator) Validate(_ context.Context, token string) *domain.Identity {
	v.calls++
	return v.users[token]
}

func newValidator() *mapValidator {
	return &mapValidator{users: map[string]*domain.Identity{
		"tok-admin":    {ID: "u1", Role: domain.RoleAdmin},
		"tok-vendor":   {ID: "u2", Role: domain.RoleVendor},
		"tok-customer": {ID: "u3", Role: domain.RoleCustomer},
	}}
}

func TestGate_Required(t *testing.T) {
	ctx := context.Background()
	v := newValidator()
	g := NewGate(v)

	dec := g.Required(ctx, "")
	assert.Equal(t, domain.StatusUnauthorized, dec.Status)
	assert.Equal(t, "no token", dec.Reason)
	assert.Nil(t, dec.Identity)
	assert.Zero(t, v.calls, "no network call without a token")

	dec = g.Required(ctx, "garbage")
	assert.Equal(t, domain.StatusUnauthorized, dec.Status)
	assert.Equal(t, "invalid or expired", dec.Reason)
	assert.Nil(t, dec.Identity)

	dec = g.Required(ctx, "tok-customer")
	require.True(t, dec.Allowed())
	assert.Equal(t, "u3", dec.Identity.ID)
}

func TestGate_DenialsCarryCause(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newValidator())

	cases := map[string]struct {
		dec  domain.Decision
		want error
	}{
		"no token":   {g.Required(ctx, ""), domain.ErrMissingCredential},
		"bad token":  {g.Required(ctx, "garbage"), domain.ErrInvalidCredential},
		"wrong role": {g.RoleRequired(ctx, "tok-admin", domain.RoleVendor), domain.ErrInsufficientRole},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, tc.dec.Err, tc.want)
			assert.Equal(t, domain.StatusFor(tc.want), int(tc.dec.Status))
		})
	}

	assert.NoError(t, g.Required(ctx, "tok-admin").Err)
	assert.NoError(t, g.Optional(ctx, "garbage").Err)
}

func TestGate_RoleRequiredIsExactMatch(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newValidator())

	dec := g.RoleRequired(ctx, "tok-vendor", domain.RoleAdmin)
	assert.Equal(t, domain.StatusForbidden, dec.Status)
	assert.True(t, strings.Contains(dec.Reason, "admin"), "reason %q should name the role", dec.Reason)
	assert.Equal(t, "required role: admin", dec.Reason)
	assert.Nil(t, dec.Identity)

	// admin é "maior" que vendor na hierarquia, mas o gate compara a string
	dec = g.RoleRequired(ctx, "tok-admin", domain.RoleVendor)
	assert.Equal(t, domain.StatusForbidden, dec.Status)

	dec = g.RoleRequired(ctx, "tok-vendor", domain.RoleVendor)
	require.True(t, dec.Allowed())
	assert.Equal(t, "u2", dec.Identity.ID)
}

func TestGate_RoleRequiredPropagatesAuthFailure(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newValidator())

	dec := g.RoleRequired(ctx, "", domain.RoleAdmin)
	assert.Equal(t, domain.StatusUnauthorized, dec.Status)
	assert.Equal(t, domain.ReasonNoToken, dec.Reason)

	dec = g.RoleRequired(ctx, "expired", domain.RoleAdmin)
	assert.Equal(t, domain.StatusUnauthorized, dec.Status)
	assert.Equal(t, domain.ReasonInvalid, dec.Reason)
}

func TestGate_OptionalNeverFails(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newValidator())

	for _, tok := range []string{"", "garbage", "tok-admin", "tok-customer"} {
		dec := g.Optional(ctx, tok)
		assert.Equal(t, domain.StatusOK, dec.Status, "token %q", tok)
		assert.Empty(t, dec.Reason)
	}

	assert.Nil(t, g.Optional(ctx, "garbage").Identity)
	require.NotNil(t, g.Optional(ctx, "tok-admin").Identity)
}

func TestGate_OptionalWithoutValidator(t *testing.T) {
	g := &Gate{}
	dec := g.Optional(context.Background(), "anything")
	assert.Equal(t, domain.StatusOK, dec.Status)
	assert.Nil(t, dec.Identity)

	dec = g.Required(context.Background(), "anything")
	assert.Equal(t, domain.StatusUnauthorized, dec.Status)
}

func TestGate_AuthorizeDispatches(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newValidator())

	assert.Equal(t, domain.StatusUnauthorized, g.Authorize(ctx, "", domain.Required()).Status)
	assert.Equal(t, domain.StatusOK, g.Authorize(ctx, "", domain.Optional()).Status)
	assert.Equal(t, domain.StatusForbidden, g.Authorize(ctx, "tok-customer", domain.RoleRequired(domain.RoleVendor)).Status)
	assert.Equal(t, domain.StatusOK, g.Authorize(ctx, "tok-vendor", domain.RoleRequired(domain.RoleVendor)).Status)
}
