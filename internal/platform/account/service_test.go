package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametracker/internal/database"
	"gametracker/internal/platform/google"
	"gametracker/internal/platform/user"
	"gametracker/pkg/utils"
)

type sentMail struct {
	email string
	name  string
	token string
}

type fakeMailer struct {
	verifications []sentMail
	welcomes      []sentMail
	resets        []sentMail
	fail          error
}

func (f *fakeMailer) SendVerificationEmail(email, name, token string) error {
	if f.fail != nil {
		return f.fail
	}
	f.verifications = append(f.verifications, sentMail{email, name, token})
	return nil
}

func (f *fakeMailer) SendWelcomeEmail(email, name string) error {
	if f.fail != nil {
		return f.fail
	}
	f.welcomes = append(f.welcomes, sentMail{email: email, name: name})
	return nil
}

func (f *fakeMailer) SendPasswordResetEmail(email, name, token string) error {
	if f.fail != nil {
		return f.fail
	}
	f.resets = append(f.resets, sentMail{email, name, token})
	return nil
}

type fakeVerifier struct {
	identity *google.Identity
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*google.Identity, error) {
	return f.identity, f.err
}

func newService() (*Service, *user.MemoryStore, *fakeMailer, *fakeVerifier) {
	store := user.NewMemoryStore()
	mailer := &fakeMailer{}
	verifier := &fakeVerifier{}
	return NewService(store, mailer, verifier), store, mailer, verifier
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Handle:          "gamer1",
		DisplayName:     "Gamer One",
		Email:           "a@b.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func TestRegister(t *testing.T) {
	svc, store, mailer, _ := newService()

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)
	assert.False(t, created.IsVerified)

	stored, err := store.GetByEmail("a@b.com")
	require.NoError(t, err)

	// Only a one-way hash is stored.
	require.NotNil(t, stored.PasswordHash)
	assert.NotContains(t, *stored.PasswordHash, "secret1")
	assert.True(t, utils.VerifyPassword("secret1", *stored.PasswordHash))

	require.NotNil(t, stored.VerificationToken)
	require.NotNil(t, stored.VerificationTokenExpires)
	assert.True(t, stored.VerificationTokenExpires.After(time.Now()))

	require.Len(t, mailer.verifications, 1)
	assert.Equal(t, *stored.VerificationToken, mailer.verifications[0].token)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newService()

	testCases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing handle", func(in *RegisterInput) { in.Handle = "" }},
		{"missing display name", func(in *RegisterInput) { in.DisplayName = "" }},
		{"missing email", func(in *RegisterInput) { in.Email = "" }},
		{"missing password", func(in *RegisterInput) { in.Password = "" }},
		{"missing confirmation", func(in *RegisterInput) { in.ConfirmPassword = "" }},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"handle too short", func(in *RegisterInput) { in.Handle = "ab" }},
		{"handle too long", func(in *RegisterInput) { in.Handle = strings.Repeat("a", 31) }},
		{"password mismatch", func(in *RegisterInput) { in.ConfirmPassword = "secret2" }},
		{"password too short", func(in *RegisterInput) { in.Password = "12345"; in.ConfirmPassword = "12345" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRegistration()
			tc.mutate(&input)

			_, err := svc.Register(input)
			var verr ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc, _, _, _ := newService()

	_, err := svc.Register(validRegistration())
	require.NoError(t, err)

	input := validRegistration()
	input.Handle = "gamer2"
	input.Email = "A@B.com" // email uniqueness is case-insensitive
	_, err = svc.Register(input)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	input = validRegistration()
	input.Email = "c@d.com"
	_, err = svc.Register(input)
	assert.ErrorIs(t, err, ErrDuplicateHandle)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	svc, store, mailer, _ := newService()
	mailer.fail = errors.New("smtp down")

	_, err := svc.Register(validRegistration())
	require.NoError(t, err)

	_, err = store.GetByEmail("a@b.com")
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	svc, store, mailer, _ := newService()

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)
	token := *created.VerificationToken

	require.NoError(t, svc.VerifyEmail(token))

	stored, err := store.GetByID(created.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationTokenExpires)
	assert.Len(t, mailer.welcomes, 1)

	// One-time use.
	assert.ErrorIs(t, svc.VerifyEmail(token), ErrInvalidOrExpiredToken)
}

func TestVerifyEmailBadToken(t *testing.T) {
	svc, _, _, _ := newService()

	assert.ErrorIs(t, svc.VerifyEmail("nope"), ErrInvalidOrExpiredToken)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	svc, store, _, _ := newService()

	token := "expired-token"
	expired := time.Now().Add(-time.Minute)
	hash := utils.HashPassword("secret1")
	require.NoError(t, store.Create(&database.User{
		Handle:                   "gamer1",
		DisplayName:              "Gamer One",
		Email:                    "a@b.com",
		PasswordHash:             &hash,
		VerificationToken:        &token,
		VerificationTokenExpires: &expired,
	}))

	assert.ErrorIs(t, svc.VerifyEmail(token), ErrInvalidOrExpiredToken)
}

func TestResendVerification(t *testing.T) {
	svc, store, mailer, _ := newService()

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)
	firstToken := *created.VerificationToken

	require.NoError(t, svc.ResendVerification("a@b.com"))

	stored, err := store.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.NotEqual(t, firstToken, *stored.VerificationToken)
	assert.Len(t, mailer.verifications, 2)
}

func TestResendVerificationErrors(t *testing.T) {
	svc, _, mailer, _ := newService()

	assert.ErrorIs(t, svc.ResendVerification("missing@b.com"), ErrNotFound)

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(*created.VerificationToken))

	assert.ErrorIs(t, svc.ResendVerification("a@b.com"), ErrAlreadyVerified)

	// Delivery failure is caller-visible for an explicit resend.
	input := validRegistration()
	input.Handle = "gamer2"
	input.Email = "c@d.com"
	_, err = svc.Register(input)
	require.NoError(t, err)

	mailer.fail = errors.New("smtp down")
	assert.Error(t, svc.ResendVerification("c@d.com"))
}

func TestGoogleSignInCreatesVerifiedUser(t *testing.T) {
	svc, store, mailer, verifier := newService()
	picture := "https://lh3.example/pic"
	verifier.identity = &google.Identity{
		GoogleID: "g-123",
		Email:    "New.Player@Gmail.com",
		Name:     "New Player",
		Picture:  &picture,
	}

	created, isNew, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, created.IsVerified)
	assert.True(t, strings.HasPrefix(created.Handle, "New.Player"))
	assert.Equal(t, "new.player@gmail.com", created.Email)
	assert.False(t, created.HasPassword())

	stored, err := store.GetByGoogleID("g-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	assert.Len(t, mailer.welcomes, 1)
}

func TestGoogleSignInHandleRespectsLengthBounds(t *testing.T) {
	svc, _, _, verifier := newService()
	verifier.identity = &google.Identity{
		GoogleID: "g-long",
		Email:    "averyveryverylonglocalpartwayover30chars@example.com",
		Name:     "Long Local",
	}

	created, isNew, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.LessOrEqual(t, len(created.Handle), HandleMaxLen)
	assert.GreaterOrEqual(t, len(created.Handle), HandleMinLen)
	assert.True(t, strings.HasPrefix(created.Handle, "averyveryverylonglocalpartw"))

	verifier.identity = &google.Identity{
		GoogleID: "g-short",
		Email:    "x@example.com",
		Name:     "Short Local",
	}

	created, isNew, err = svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.GreaterOrEqual(t, len(created.Handle), HandleMinLen)
	assert.LessOrEqual(t, len(created.Handle), HandleMaxLen)
	assert.True(t, strings.HasPrefix(created.Handle, "x"))
}

func TestGoogleSignInLinksExistingAccount(t *testing.T) {
	svc, store, _, verifier := newService()

	registered, err := svc.Register(validRegistration())
	require.NoError(t, err)

	picture := "https://lh3.example/pic"
	verifier.identity = &google.Identity{
		GoogleID: "g-123",
		Email:    "a@b.com",
		Name:     "Gamer One",
		Picture:  &picture,
	}

	linked, isNew, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, registered.ID, linked.ID)
	assert.True(t, linked.IsVerified) // trust delegated to Google

	stored, err := store.GetByID(registered.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-123", *stored.GoogleID)
	assert.True(t, stored.HasPassword()) // linking keeps the password credential
}

func TestGoogleSignInExistingGoogleAccount(t *testing.T) {
	svc, _, _, verifier := newService()
	verifier.identity = &google.Identity{GoogleID: "g-123", Email: "a@b.com", Name: "Gamer"}

	first, isNew, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.True(t, isNew)

	second, isNew, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
}

func TestGoogleSignInVerifierFailure(t *testing.T) {
	svc, _, _, verifier := newService()
	verifier.err = google.ErrGoogleAuth

	_, _, err := svc.GoogleSignIn(context.Background(), "bogus")
	assert.ErrorIs(t, err, google.ErrGoogleAuth)
}

func TestRequestPasswordReset(t *testing.T) {
	svc, store, mailer, _ := newService()

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset("a@b.com"))

	stored, err := store.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetPasswordToken)
	require.NotNil(t, stored.ResetPasswordExpires)
	require.Len(t, mailer.resets, 1)
	assert.Equal(t, *stored.ResetPasswordToken, mailer.resets[0].token)
}

func TestRequestPasswordResetEnumerationResistance(t *testing.T) {
	svc, _, mailer, verifier := newService()

	// Unknown address: same nil outcome, no mail.
	assert.NoError(t, svc.RequestPasswordReset("missing@b.com"))

	// Google-only account: same nil outcome, no mail.
	verifier.identity = &google.Identity{GoogleID: "g-123", Email: "g@b.com", Name: "G"}
	_, _, err := svc.GoogleSignIn(context.Background(), "credential")
	require.NoError(t, err)
	assert.NoError(t, svc.RequestPasswordReset("g@b.com"))

	assert.Empty(t, mailer.resets)
}

func TestRequestPasswordResetSurvivesMailFailure(t *testing.T) {
	svc, _, mailer, _ := newService()

	_, err := svc.Register(validRegistration())
	require.NoError(t, err)

	mailer.fail = errors.New("smtp down")
	assert.NoError(t, svc.RequestPasswordReset("a@b.com"))
}

func TestResetPassword(t *testing.T) {
	svc, store, mailer, _ := newService()

	created, err := svc.Register(validRegistration())
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset("a@b.com"))
	token := mailer.resets[0].token

	refreshHash := "digest"
	require.NoError(t, store.SetRefreshTokenHash(created.ID, refreshHash))

	require.NoError(t, svc.ResetPassword(token, "newsecret", "newsecret"))

	stored, err := store.GetByID(created.ID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword("newsecret", *stored.PasswordHash))
	assert.Nil(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordExpires)
	// All sessions are invalidated.
	assert.Nil(t, stored.RefreshTokenHash)

	// One-time use.
	assert.ErrorIs(t, svc.ResetPassword(token, "another1", "another1"), ErrInvalidOrExpiredToken)
}

func TestResetPasswordValidation(t *testing.T) {
	svc, _, _, _ := newService()

	testCases := []struct {
		name      string
		password  string
		confirm   string
	}{
		{"missing password", "", "newsecret"},
		{"missing confirmation", "newsecret", ""},
		{"mismatch", "newsecret", "othersecret"},
		{"too short", "12345", "12345"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ResetPassword("whatever", tc.password, tc.confirm)
			var verr ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestResetPasswordBadToken(t *testing.T) {
	svc, _, _, _ := newService()

	err := svc.ResetPassword("nope", "newsecret", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
