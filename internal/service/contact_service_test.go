package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/service"
)

func newContactFixture(t *testing.T) (*service.ContactService, *memoryContactRepo, *fakeAvatarStore) {
	t.Helper()
	repo := newMemoryContactRepo()
	store := &fakeAvatarStore{}
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	return service.NewContactService(repo, store, node, zap.NewNop()), repo, store
}

func makeContact(t *testing.T, svc *service.ContactService, email string, phone int64) domain.Contact {
	t.Helper()
	contact, err := svc.Create(context.Background(), service.ContactInput{
		FirstName: "Taras",
		LastName:  "Koval",
		Email:     email,
		Phone:     phone,
		Birthday:  time.Now().AddDate(-30, 0, 3),
		Password:  "contactpass",
	})
	require.NoError(t, err)
	return contact
}

func TestContactCreateAndGet(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()

	created := makeContact(t, svc, "taras@example.com", 380671234567)
	require.Equal(t, domain.RoleUser, created.Role)
	require.Contains(t, created.AvatarURL, "gravatar.com")

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Email, fetched.Email)
}

func TestContactCreateDuplicateEmail(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	makeContact(t, svc, "taras@example.com", 380671234567)

	_, err := svc.Create(context.Background(), service.ContactInput{
		FirstName: "Other",
		LastName:  "Koval",
		Email:     "taras@example.com",
		Phone:     380679999999,
		Birthday:  time.Date(1991, time.May, 5, 0, 0, 0, 0, time.UTC),
		Password:  "contactpass",
	})

	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "account_exists", svcErr.Code)
	require.Equal(t, 409, svcErr.Status)
}

func TestContactGetMissing(t *testing.T) {
	svc, _, _ := newContactFixture(t)

	_, err := svc.Get(context.Background(), 12345)
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)
	require.Equal(t, 404, svcErr.Status)
}

func TestContactUpdate(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()
	created := makeContact(t, svc, "taras@example.com", 380671234567)

	updated, err := svc.Update(ctx, created.ID, service.ContactInput{
		FirstName: "Tarasyk",
		LastName:  "Kovalenko",
		Email:     "tarasyk@example.com",
		Phone:     380670000001,
		Birthday:  time.Date(1992, time.July, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "Tarasyk", updated.FirstName)
	require.Equal(t, "tarasyk@example.com", updated.Email)

	_, err = svc.Update(ctx, 99999, service.ContactInput{Email: "x@example.com"})
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)
}

func TestContactChangeRole(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()
	created := makeContact(t, svc, "taras@example.com", 380671234567)

	updated, err := svc.ChangeRole(ctx, created.ID, "moderator")
	require.NoError(t, err)
	require.Equal(t, domain.RoleModerator, updated.Role)

	_, err = svc.ChangeRole(ctx, created.ID, "superuser")
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "invalid_request", svcErr.Code)
	require.Equal(t, 400, svcErr.Status)

	_, err = svc.ChangeRole(ctx, 99999, "admin")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)
}

func TestContactDelete(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()
	created := makeContact(t, svc, "taras@example.com", 380671234567)

	require.NoError(t, svc.Delete(ctx, created.ID))

	err := svc.Delete(ctx, created.ID)
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)
}

func TestContactSearches(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()
	makeContact(t, svc, "taras@example.com", 380671234567)

	byFirst, err := svc.SearchFirstName(ctx, "Taras")
	require.NoError(t, err)
	require.Len(t, byFirst, 1)

	byLast, err := svc.SearchLastName(ctx, "Koval")
	require.NoError(t, err)
	require.Len(t, byLast, 1)

	exact, err := svc.SearchEmail(ctx, "taras@example.com")
	require.NoError(t, err)
	require.Equal(t, "taras@example.com", exact.Email)

	like, err := svc.Search(ctx, "example")
	require.NoError(t, err)
	require.Len(t, like, 1)

	_, err = svc.SearchFirstName(ctx, "Zorian")
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)

	_, err = svc.SearchEmail(ctx, "ghost@example.com")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "not_found", svcErr.Code)
}

func TestContactUpcomingBirthdays(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()

	// Birthday in 3 days should match; birthday in ~6 months should not.
	makeContact(t, svc, "soon@example.com", 380671111111)
	far, err := svc.Create(ctx, service.ContactInput{
		FirstName: "Far",
		LastName:  "Away",
		Email:     "far@example.com",
		Phone:     380672222222,
		Birthday:  time.Now().AddDate(-25, 6, 0),
		Password:  "contactpass",
	})
	require.NoError(t, err)

	upcoming, err := svc.UpcomingBirthdays(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.NotEqual(t, far.ID, upcoming[0].ID)
}

func TestContactUpdateAvatar(t *testing.T) {
	svc, repo, store := newContactFixture(t)
	ctx := context.Background()
	created := makeContact(t, svc, "taras@example.com", 380671234567)

	updated, err := svc.UpdateAvatar(ctx, created, "me.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	require.Contains(t, updated.AvatarURL, "https://avatars.example.com/avatars/")

	require.Len(t, store.keys, 1)
	require.Contains(t, store.keys[0], ".png")

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, updated.AvatarURL, stored.AvatarURL)
}
