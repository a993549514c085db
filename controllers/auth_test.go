package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tharoon321/go-tours/middleware"
	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

type fakeUserStore struct {
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok && u.Active {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (s *fakeUserStore) FindByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	for _, u := range s.users {
		if u.PasswordResetToken == hash && u.PasswordResetExpires.After(now) {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeUserStore) Insert(_ context.Context, u *models.User) error {
	s.users[u.ID.Hex()] = u
	return nil
}

func (s *fakeUserStore) UpdateByID(_ context.Context, id string, update bson.M) error {
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if set, ok := update["$set"].(bson.M); ok {
		for k, v := range set {
			switch k {
			case "password":
				u.Password = v.(string)
			case "passwordChangedAt":
				u.PasswordChangedAt = v.(time.Time)
			case "passwordResetToken":
				u.PasswordResetToken = v.(string)
			case "passwordResetExpires":
				u.PasswordResetExpires = v.(time.Time)
			case "active":
				u.Active = v.(bool)
			}
		}
	}
	if unset, ok := update["$unset"].(bson.M); ok {
		for k := range unset {
			switch k {
			case "passwordResetToken":
				u.PasswordResetToken = ""
			case "passwordResetExpires":
				u.PasswordResetExpires = time.Time{}
			}
		}
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	failWith error
	sent     []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

const goodPassword = "Sup3r$ecret"

func rawTokenFromMail(t *testing.T, body string) string {
	t.Helper()
	const marker = "/reset-password/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0)
	rest := body[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func newAuthSetup() (*AuthController, *fakeUserStore, *fakeMailer, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	store := newFakeUserStore()
	mailer := &fakeMailer{}
	auth := &AuthController{
		Users:         store,
		Signer:        utils.NewTokenSigner("test-secret", time.Hour, "test"),
		Hasher:        utils.NewPasswordHasher(bcrypt.MinCost),
		Mailer:        mailer,
		ResetTokenTTL: 10 * time.Minute,
	}

	r := gin.New()
	r.Use(middleware.ErrorHandler(true))
	r.POST("/signup", auth.Signup)
	r.POST("/login", auth.Login)
	r.POST("/forgot-password", auth.ForgotPassword)
	r.PATCH("/reset-password/:token", auth.ResetPassword)
	r.PATCH("/change-password", middleware.Auth(auth.Signer, store), auth.UpdatePassword)
	return auth, store, mailer, r
}

func doJSON(r *gin.Engine, method, path string, payload gin.H) (*httptest.ResponseRecorder, map[string]interface{}) {
	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(payload)
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func signupPayload() gin.H {
	return gin.H{
		"name":            "Test User",
		"email":           "test@example.com",
		"password":        goodPassword,
		"passwordConfirm": goodPassword,
	}
}

func seedUser(t *testing.T, auth *AuthController, store *fakeUserStore) *models.User {
	t.Helper()
	hash, err := auth.Hasher.Hash(goodPassword)
	require.NoError(t, err)
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Test User",
		Email:     "test@example.com",
		Password:  hash,
		Role:      models.RoleUser,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	store.users[u.ID.Hex()] = u
	return u
}

func TestSignupHashesPasswordAndIssuesToken(t *testing.T) {
	auth, store, _, r := newAuthSetup()

	w, resp := doJSON(r, http.MethodPost, "/signup", signupPayload())

	require.Equal(t, http.StatusCreated, w.Code)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)

	require.Len(t, store.users, 1)
	var stored *models.User
	for _, u := range store.users {
		stored = u
	}
	assert.NotEqual(t, goodPassword, stored.Password)
	assert.True(t, auth.Hasher.Compare(stored.Password, goodPassword))
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.True(t, stored.Active)

	claims, err := auth.Signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID.Hex(), claims.Subject)

	// the hash never leaks in the response
	assert.NotContains(t, w.Body.String(), stored.Password)
}

func TestSignupRejectsWeakPasswords(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1$"},
		{"no uppercase", "sup3r$ecret"},
		{"no digit", "Super$ecret"},
		{"no special", "Sup3rSecret"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, store, _, r := newAuthSetup()
			payload := signupPayload()
			payload["password"] = tc.password
			payload["passwordConfirm"] = tc.password

			w, _ := doJSON(r, http.MethodPost, "/signup", payload)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.users)
		})
	}
}

func TestSignupRejectsMismatchedConfirmation(t *testing.T) {
	_, store, _, r := newAuthSetup()
	payload := signupPayload()
	payload["passwordConfirm"] = goodPassword + "x"

	w, _ := doJSON(r, http.MethodPost, "/signup", payload)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.users)
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	_, store, _, r := newAuthSetup()
	payload := signupPayload()
	payload["role"] = "superuser"

	w, _ := doJSON(r, http.MethodPost, "/signup", payload)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.users)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	seedUser(t, auth, store)

	wWrongPw, respWrongPw := doJSON(r, http.MethodPost, "/login", gin.H{
		"email":    "test@example.com",
		"password": "Wr0ng$password",
	})
	wUnknown, respUnknown := doJSON(r, http.MethodPost, "/login", gin.H{
		"email":    "nobody@example.com",
		"password": goodPassword,
	})

	assert.Equal(t, http.StatusUnauthorized, wWrongPw.Code)
	assert.Equal(t, wWrongPw.Code, wUnknown.Code)
	assert.Equal(t, respWrongPw["message"], respUnknown["message"])
	assert.Equal(t, respWrongPw["status"], respUnknown["status"])
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)

	w, resp := doJSON(r, http.MethodPost, "/login", gin.H{
		"email":    "test@example.com",
		"password": goodPassword,
	})

	require.Equal(t, http.StatusOK, w.Code)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)

	claims, err := auth.Signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.Subject)
}

func TestLoginIgnoresDeactivatedUsers(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)
	user.Active = false

	w, resp := doJSON(r, http.MethodPost, "/login", gin.H{
		"email":    "test@example.com",
		"password": goodPassword,
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "incorrect email or password", resp["message"])
}

func TestForgotPasswordStoresHashAndMailsPlaintext(t *testing.T) {
	auth, store, mailer, r := newAuthSetup()
	user := seedUser(t, auth, store)

	w, _ := doJSON(r, http.MethodPost, "/forgot-password", gin.H{"email": user.Email})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, user.Email, mailer.sent[0].to)

	// the stored value is the hash, never the raw token; the mail carries
	// the raw one inside the reset URL
	require.NotEmpty(t, user.PasswordResetToken)
	assert.NotContains(t, mailer.sent[0].body, user.PasswordResetToken)
	assert.True(t, user.PasswordResetExpires.After(time.Now()))

	raw := rawTokenFromMail(t, mailer.sent[0].body)
	assert.Equal(t, user.PasswordResetToken, utils.HashResetToken(raw))
}

func TestForgotPasswordRollsBackOnMailFailure(t *testing.T) {
	auth, store, mailer, r := newAuthSetup()
	user := seedUser(t, auth, store)
	mailer.failWith = assert.AnError

	w, _ := doJSON(r, http.MethodPost, "/forgot-password", gin.H{"email": user.Email})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, user.PasswordResetToken)
	assert.True(t, user.PasswordResetExpires.IsZero())
}

// ctxAwareStore refuses writes once the given context is done, the way the
// real mongo store does.
type ctxAwareStore struct {
	*fakeUserStore
}

func (s *ctxAwareStore) UpdateByID(ctx context.Context, id string, update bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeUserStore.UpdateByID(ctx, id, update)
}

// cancelingMailer kills the request context before reporting failure,
// imitating a client that hangs up while dispatch is in flight.
type cancelingMailer struct {
	cancel context.CancelFunc
}

func (m *cancelingMailer) Send(_, _, _ string) error {
	m.cancel()
	return assert.AnError
}

func TestForgotPasswordRollsBackAfterRequestAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	inner := newFakeUserStore()
	store := &ctxAwareStore{fakeUserStore: inner}
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := &AuthController{
		Users:         store,
		Signer:        utils.NewTokenSigner("test-secret", time.Hour, "test"),
		Hasher:        utils.NewPasswordHasher(bcrypt.MinCost),
		Mailer:        &cancelingMailer{cancel: cancel},
		ResetTokenTTL: 10 * time.Minute,
	}
	user := seedUser(t, auth, inner)

	r := gin.New()
	r.Use(middleware.ErrorHandler(true))
	r.POST("/forgot-password", auth.ForgotPassword)

	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(gin.H{"email": user.Email})
	req := httptest.NewRequest(http.MethodPost, "/forgot-password", &body).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// the undelivered token must not survive the aborted request
	assert.Empty(t, user.PasswordResetToken)
	assert.True(t, user.PasswordResetExpires.IsZero())
}

func TestForgotPasswordMasksUnknownEmail(t *testing.T) {
	auth, store, mailer, r := newAuthSetup()
	user := seedUser(t, auth, store)

	wKnown, respKnown := doJSON(r, http.MethodPost, "/forgot-password", gin.H{"email": user.Email})
	wUnknown, respUnknown := doJSON(r, http.MethodPost, "/forgot-password", gin.H{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusOK, wKnown.Code)
	assert.Equal(t, wKnown.Code, wUnknown.Code)
	assert.Equal(t, respKnown["message"], respUnknown["message"])
	assert.Len(t, mailer.sent, 1)
}

func TestResetPasswordRejectsExpiredAndMismatchedTokens(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)
	originalHash := user.Password

	raw, hash := utils.NewResetToken()
	user.PasswordResetToken = hash
	user.PasswordResetExpires = time.Now().Add(-time.Minute) // already expired

	payload := gin.H{"password": "N3w$ecret!", "passwordConfirm": "N3w$ecret!"}

	wExpired, respExpired := doJSON(r, http.MethodPatch, "/reset-password/"+raw, payload)

	user.PasswordResetExpires = time.Now().Add(10 * time.Minute)
	wWrong, respWrong := doJSON(r, http.MethodPatch, "/reset-password/not-the-token", payload)

	assert.Equal(t, http.StatusUnauthorized, wExpired.Code)
	assert.Equal(t, wExpired.Code, wWrong.Code)
	assert.Equal(t, respExpired["message"], respWrong["message"])
	// the password never moved
	assert.Equal(t, originalHash, user.Password)

	// an already-consumed token must not validate again
	wOK, _ := doJSON(r, http.MethodPatch, "/reset-password/"+raw, payload)
	require.Equal(t, http.StatusOK, wOK.Code)
	wReplay, _ := doJSON(r, http.MethodPatch, "/reset-password/"+raw, payload)
	assert.Equal(t, http.StatusUnauthorized, wReplay.Code)
}

func TestResetPasswordSetsNewPasswordAndClearsToken(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)

	raw, hash := utils.NewResetToken()
	user.PasswordResetToken = hash
	user.PasswordResetExpires = time.Now().Add(10 * time.Minute)

	w, resp := doJSON(r, http.MethodPatch, "/reset-password/"+raw, gin.H{
		"password":        "N3w$ecret!",
		"passwordConfirm": "N3w$ecret!",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, auth.Hasher.Compare(user.Password, "N3w$ecret!"))
	assert.Empty(t, user.PasswordResetToken)
	assert.True(t, user.PasswordResetExpires.IsZero())
	assert.False(t, user.PasswordChangedAt.IsZero())

	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	_, err := auth.Signer.Verify(token)
	assert.NoError(t, err)
}

func TestUpdatePasswordRequiresCurrentPassword(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)
	token, err := auth.Signer.Sign(user.ID.Hex())
	require.NoError(t, err)

	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(gin.H{
		"password":        "N3w$ecret!",
		"passwordConfirm": "N3w$ecret!",
	})
	req := httptest.NewRequest(http.MethodPatch, "/change-password", &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePasswordRejectsWrongCurrentPassword(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)
	originalHash := user.Password
	token, err := auth.Signer.Sign(user.ID.Hex())
	require.NoError(t, err)

	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(gin.H{
		"currentPassword": "Wr0ng$password",
		"password":        "N3w$ecret!",
		"passwordConfirm": "N3w$ecret!",
	})
	req := httptest.NewRequest(http.MethodPatch, "/change-password", &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, originalHash, user.Password)
}

func TestUpdatePasswordRehashesAndIssuesFreshToken(t *testing.T) {
	auth, store, _, r := newAuthSetup()
	user := seedUser(t, auth, store)
	originalHash := user.Password
	token, err := auth.Signer.Sign(user.ID.Hex())
	require.NoError(t, err)

	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(gin.H{
		"currentPassword": goodPassword,
		"password":        "N3w$ecret!",
		"passwordConfirm": "N3w$ecret!",
	})
	req := httptest.NewRequest(http.MethodPatch, "/change-password", &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, originalHash, user.Password)
	assert.True(t, auth.Hasher.Compare(user.Password, "N3w$ecret!"))
	assert.WithinDuration(t, time.Now(), user.PasswordChangedAt, 5*time.Second)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	fresh, _ := resp["token"].(string)
	require.NotEmpty(t, fresh)
	_, err = auth.Signer.Verify(fresh)
	assert.NoError(t, err)
}
