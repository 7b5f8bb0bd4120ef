package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relay-chat/internal/domain/user"
	"relay-chat/internal/mirror"
	"relay-chat/internal/repository"
	"relay-chat/internal/store"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu   sync.Mutex
	regs []mirror.Registration
	err  error
}

func (m *fakeMirror) RegisterUser(ctx context.Context, reg mirror.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs = append(m.regs, reg)
	return m.err
}

func newUserService(t *testing.T, m Mirror) (*UserService, repository.UserRepository) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(s.Close)
	repo := repository.NewUserRepository(s)
	return NewUserService(repo, m, logger.NewNop()), repo
}

func strPtr(s string) *string { return &s }

func signUpAda(t *testing.T, svc *UserService) {
	t.Helper()
	_, err := svc.SignUp(context.Background(), SignUpInput{UID: "a1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
}

func TestSignUpRegistersMirror(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	svc, repo := newUserService(t, m)

	u, err := svc.SignUp(ctx, SignUpInput{UID: "a1", FirstName: " Ada ", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "ada lovelace", u.Username)
	assert.False(t, u.SignUpDate.IsZero())

	stored, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, "ada lovelace", stored.Username)

	require.Len(t, m.regs, 1)
	assert.Equal(t, "a1", m.regs[0].UID)
	assert.Equal(t, "ada@example.com", m.regs[0].Email)
}

func TestSignUpIgnoresMirrorFailure(t *testing.T) {
	m := &fakeMirror{err: errors.New("backend down")}
	svc, _ := newUserService(t, m)
	signUpAda(t, svc)
	svc.Wait()
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newUserService(t, nil)
	tests := []SignUpInput{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		{UID: "a1", LastName: "Lovelace", Email: "ada@example.com"},
		{UID: "a1", FirstName: "Ada", LastName: " ", Email: "ada@example.com"},
		{UID: "a1", FirstName: "Ada", LastName: "Lovelace"},
	}
	for i, in := range tests {
		_, err := svc.SignUp(context.Background(), in)
		assert.ErrorIs(t, err, relay_errors.ErrInvalidInput, "case %d", i)
	}
}

func TestUpdateProfileRecomputesUsername(t *testing.T) {
	tests := []struct {
		name  string
		patch user.Patch
		want  string
	}{
		{"first only", user.Patch{FirstName: strPtr("Augusta")}, "augusta lovelace"},
		{"last only", user.Patch{LastName: strPtr("King")}, "ada king"},
		{"both", user.Patch{FirstName: strPtr("Grace"), LastName: strPtr("Hopper")}, "grace hopper"},
		{"mixed case", user.Patch{FirstName: strPtr("ÉLISE")}, "élise lovelace"},
		{"no name change", user.Patch{About: strPtr("analyst")}, "ada lovelace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newUserService(t, nil)
			signUpAda(t, svc)

			u, err := svc.UpdateProfile(context.Background(), "a1", tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Username)
			assert.Equal(t, user.Username(u.FirstName, u.LastName), u.Username)
		})
	}
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t, nil)
	signUpAda(t, svc)

	_, err := svc.UpdateProfile(ctx, "a1", user.Patch{FirstName: strPtr("")})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
	_, err = svc.UpdateProfile(ctx, "missing", user.Patch{About: strPtr("x")})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestPushTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repo := newUserService(t, nil)
	signUpAda(t, svc)

	for _, tok := range []string{"phone", "tablet", "phone"} {
		require.NoError(t, svc.RegisterPushToken(ctx, "a1", tok))
	}
	assert.ErrorIs(t, svc.RegisterPushToken(ctx, "a1", " "), relay_errors.ErrInvalidInput)
	require.NoError(t, svc.RemovePushToken(ctx, "a1", "phone"))

	tokens, err := repo.GetPushTokens(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tablet", tokens[0].Token)
}

func TestSearchAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t, nil)
	for _, in := range []SignUpInput{
		{UID: "a1", FirstName: "Ada", LastName: "Lovelace", Email: "a@example.com"},
		{UID: "a2", FirstName: "Adam", LastName: "Smith", Email: "b@example.com"},
		{UID: "b1", FirstName: "Bob", LastName: "Marley", Email: "c@example.com"},
	} {
		_, err := svc.SignUp(ctx, in)
		require.NoError(t, err)
	}
	found, err := svc.Search(ctx, "ADA", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, svc.DeleteAccount(ctx, "a2"))
	_, err = svc.Get(ctx, "a2")
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}
