package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

type fakeUserStore struct {
	users map[string]*models.User
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
	applyUserUpdate(u, update)
	return nil
}

// applyUserUpdate interprets the update documents the auth flow issues.
func applyUserUpdate(u *models.User, update bson.M) {
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
}

func newTestUser() *models.User {
	return &models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Test User",
		Email:     "test@example.com",
		Role:      models.RoleUser,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func protectedRouter(signer *utils.TokenSigner, store models.UserStore, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))

	handlers := []gin.HandlerFunc{Auth(signer, store)}
	handlers = append(handlers, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID.Hex()})
	})
	r.GET("/protected", handlers...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	signer := utils.NewTokenSigner("secret", time.Hour, "test")
	r := protectedRouter(signer, &fakeUserStore{users: map[string]*models.User{}})

	for _, header := range []string{"", "Token abc", "Bearer", "bearertoken"} {
		w := doGet(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthRejectsInvalidAndExpiredTokens(t *testing.T) {
	signer := utils.NewTokenSigner("secret", time.Hour, "test")
	other := utils.NewTokenSigner("other", time.Hour, "test")
	user := newTestUser()
	store := &fakeUserStore{users: map[string]*models.User{user.ID.Hex(): user}}
	r := protectedRouter(signer, store)

	forged, err := other.Sign(user.ID.Hex())
	require.NoError(t, err)
	w := doGet(r, "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")

	expiredSigner := utils.NewTokenSigner("secret", -time.Hour, "test")
	expired, err := expiredSigner.Sign(user.ID.Hex())
	require.NoError(t, err)
	w = doGet(r, "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session expired")
}

func TestAuthRejectsDeletedUser(t *testing.T) {
	signer := utils.NewTokenSigner("secret", time.Hour, "test")
	r := protectedRouter(signer, &fakeUserStore{users: map[string]*models.User{}})

	token, err := signer.Sign(primitive.NewObjectID().Hex())
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "no longer exists")
}

func TestAuthRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	signer := utils.NewTokenSigner("secret", time.Hour, "test")
	user := newTestUser()
	store := &fakeUserStore{users: map[string]*models.User{user.ID.Hex(): user}}
	r := protectedRouter(signer, store)

	token, err := signer.Sign(user.ID.Hex())
	require.NoError(t, err)

	// password changed after the token was issued: every prior token dies
	user.PasswordChangedAt = time.Now().Add(time.Hour)
	w := doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "recently changed")

	// a token issued after the change works
	user.PasswordChangedAt = time.Now().Add(-time.Hour)
	w = doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleGatesByRole(t *testing.T) {
	signer := utils.NewTokenSigner("secret", time.Hour, "test")
	user := newTestUser()
	store := &fakeUserStore{users: map[string]*models.User{user.ID.Hex(): user}}
	r := protectedRouter(signer, store, RequireRole(models.RoleAdmin))

	token, err := signer.Sign(user.ID.Hex())
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	user.Role = models.RoleAdmin
	w = doGet(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleWithoutAuthRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/broken", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/broken", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
