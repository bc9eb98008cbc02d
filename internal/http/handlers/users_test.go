package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/avatar"
	"github.com/taskhive/taskhive-be/internal/models/dto"
	"github.com/taskhive/taskhive-be/internal/storage"
)

func TestRegisterReturnsUserAndToken(t *testing.T) {
	ts, store := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/users", "", map[string]any{
		"name":     "Ada Lovelace",
		"email":    "Ada@Example.COM",
		"age":      36,
		"password": "difference engine",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]json.RawMessage](t, resp)
	require.Contains(t, body, "user")
	require.Contains(t, body, "token")

	var user map[string]any
	require.NoError(t, json.Unmarshal(body["user"], &user))
	assert.Equal(t, "Ada Lovelace", user["name"])
	assert.Equal(t, "ada@example.com", user["email"], "email is normalized to lowercase")
	assert.Equal(t, float64(36), user["age"])

	// Credential material never leaks into the external representation.
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, user, "session_tokens")
	assert.NotContains(t, user, "avatar")

	stored, err := store.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "difference engine", stored.PasswordHash)
	assert.Len(t, stored.SessionTokens, 1)
}

func TestRegisterValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := map[string]map[string]any{
		"missing name":       {"email": "a@example.com", "password": "longenough"},
		"short password":     {"name": "A", "email": "a@example.com", "password": "six666"},
		"weak password":      {"name": "A", "email": "a@example.com", "password": "Password123"},
		"embedded weak word": {"name": "A", "email": "a@example.com", "password": "mypassword!"},
		"no at sign":         {"name": "A", "email": "a.example.com", "password": "longenough"},
		"two at signs":       {"name": "A", "email": "a@b@example.com", "password": "longenough"},
		"empty local part":   {"name": "A", "email": "@example.com", "password": "longenough"},
		"empty domain":       {"name": "A", "email": "a@", "password": "longenough"},
		"negative age":       {"name": "A", "email": "a@example.com", "age": -1, "password": "longenough"},
	}
	for name, payload := range cases {
		resp := doJSON(t, http.MethodPost, ts.URL+"/users", "", payload)
		body := decodeBody[map[string]string](t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.NotEmpty(t, body["error"], name)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ts, _ := newTestServer(t)
	registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := doJSON(t, http.MethodPost, ts.URL+"/users", "", map[string]any{
		"name":     "Imposter",
		"email":    "ada@example.com",
		"password": "alsolongenough",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginIssuesNewSession(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := loginUser(t, ts.URL, "ada@example.com", "longenough")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[dto.AuthResponse](t, resp)
	assert.Equal(t, created.User.ID, body.User.ID)
	assert.NotEmpty(t, body.Token)
	assert.NotEqual(t, created.Token, body.Token)

	stored, err := store.GetUser(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.Len(t, stored.SessionTokens, 2, "registration and login each added a session")
}

func TestLoginFailuresAreGenericAndIdentical(t *testing.T) {
	ts, _ := newTestServer(t)
	registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	wrongPassword := loginUser(t, ts.URL, "ada@example.com", "totallywrong")
	unknownEmail := loginUser(t, ts.URL, "nobody@example.com", "longenough")

	assert.Equal(t, http.StatusBadRequest, wrongPassword.StatusCode)
	assert.Equal(t, http.StatusBadRequest, unknownEmail.StatusCode)

	bodyA := decodeBody[map[string]string](t, wrongPassword)
	bodyB := decodeBody[map[string]string](t, unknownEmail)
	assert.Equal(t, bodyA, bodyB, "both failure modes must be indistinguishable")
}

func TestLogoutRemovesExactlyThePresentedToken(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	second := decodeBody[dto.AuthResponse](t, loginUser(t, ts.URL, "ada@example.com", "longenough"))

	resp := doJSON(t, http.MethodPost, ts.URL+"/users/logout", created.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The logged-out token is rejected even though it has not expired.
	resp = doJSON(t, http.MethodGet, ts.URL+"/users/me", created.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The other device's session is untouched.
	resp = doJSON(t, http.MethodGet, ts.URL+"/users/me", second.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	stored, err := store.GetUser(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{second.Token}, stored.SessionTokens)
}

func TestLogoutAllClearsEverySession(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")
	second := decodeBody[dto.AuthResponse](t, loginUser(t, ts.URL, "ada@example.com", "longenough"))
	third := decodeBody[dto.AuthResponse](t, loginUser(t, ts.URL, "ada@example.com", "longenough"))

	resp := doJSON(t, http.MethodPost, ts.URL+"/users/logoutAll", second.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	for _, token := range []string{created.Token, second.Token, third.Token} {
		resp := doJSON(t, http.MethodGet, ts.URL+"/users/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	stored, err := store.GetUser(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SessionTokens)
}

func TestUpdateProfileFields(t *testing.T) {
	ts, _ := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := doJSON(t, http.MethodPatch, ts.URL+"/users/me", created.Token, map[string]any{
		"name": "Ada King",
		"age":  37,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Ada King", body["name"])
	assert.Equal(t, float64(37), body["age"])
	assert.Equal(t, "ada@example.com", body["email"])
}

func TestUpdateRejectsUnknownFieldsWithoutMutating(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := doJSON(t, http.MethodPatch, ts.URL+"/users/me", created.Token, map[string]any{
		"name":    "Should Not Apply",
		"isAdmin": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	stored, err := store.GetUser(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Name, "no field changed on a rejected update")
}

func TestUpdatePasswordRehashesAndInvalidatesOldPassword(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := doJSON(t, http.MethodPatch, ts.URL+"/users/me", created.Token, map[string]any{
		"password": "evenlongersecret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	stored, err := store.GetUser(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "evenlongersecret", stored.PasswordHash)

	old := loginUser(t, ts.URL, "ada@example.com", "longenough")
	assert.Equal(t, http.StatusBadRequest, old.StatusCode)
	old.Body.Close()

	fresh := loginUser(t, ts.URL, "ada@example.com", "evenlongersecret")
	assert.Equal(t, http.StatusOK, fresh.StatusCode)
	fresh.Body.Close()
}

func TestUpdateRejectsWeakReplacementPassword(t *testing.T) {
	ts, _ := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := doJSON(t, http.MethodPatch, ts.URL+"/users/me", created.Token, map[string]any{
		"password": "PassWord99",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteAccountCascadesOwnTasksOnly(t *testing.T) {
	ts, store := newTestServer(t)
	ctx := context.Background()

	ada := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")
	bob := registerUser(t, ts.URL, "Bob", "bob@example.com", "longenough")

	for _, desc := range []string{"write notes", "file taxes"} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/tasks", ada.Token, map[string]any{"description": desc})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/tasks", bob.Token, map[string]any{"description": "water plants"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, ts.URL+"/users/me", ada.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Ada", deleted["name"])

	resp = doJSON(t, http.MethodGet, ts.URL+"/users/me", ada.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "sessions die with the account")
	resp.Body.Close()

	adaTasks, err := store.ListTasks(ctx, ada.User.ID, storage.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, adaTasks)

	bobTasks, err := store.ListTasks(ctx, bob.User.ID, storage.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, bobTasks, 1, "other owners' tasks are unaffected")
}

func TestAvatarUploadAndRetrieval(t *testing.T) {
	ts, _ := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	resp := uploadAvatar(t, ts.URL, created.Token, "tiny.png", testPNG(t, 10, 10))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Retrieval is public and serves normalized PNG bytes.
	got, err := http.Get(ts.URL + "/users/" + created.User.ID + "/avatar")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "image/png", got.Header.Get("Content-Type"))

	raw, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, avatar.Dimension, img.Bounds().Dx())
	assert.Equal(t, avatar.Dimension, img.Bounds().Dy())
}

func TestAvatarUploadRejections(t *testing.T) {
	ts, _ := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	// 2,000,000 bytes is double the upload cap.
	resp := uploadAvatar(t, ts.URL, created.Token, "huge.png", make([]byte, 2_000_000))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.NotEmpty(t, body["error"])

	resp = uploadAvatar(t, ts.URL, created.Token, "anim.gif", testPNG(t, 10, 10))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = uploadAvatar(t, ts.URL, created.Token, "fake.png", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAvatarReplaceAndDelete(t *testing.T) {
	ts, store := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")
	ctx := context.Background()

	resp := uploadAvatar(t, ts.URL, created.Token, "first.png", testPNG(t, 10, 10))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	first, err := store.GetAvatar(ctx, created.User.ID)
	require.NoError(t, err)

	resp = uploadAvatar(t, ts.URL, created.Token, "second.png", testPNG(t, 300, 120))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	second, err := store.GetAvatar(ctx, created.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "old bytes are replaced, not retained")

	resp = doJSON(t, http.MethodDelete, ts.URL+"/users/me/avatar", created.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	got, err := http.Get(ts.URL + "/users/" + created.User.ID + "/avatar")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	got.Body.Close()
}

func TestAvatarMissingUserAndMissingAvatarLookAlike(t *testing.T) {
	ts, _ := newTestServer(t)
	created := registerUser(t, ts.URL, "Ada", "ada@example.com", "longenough")

	noAvatar, err := http.Get(ts.URL + "/users/" + created.User.ID + "/avatar")
	require.NoError(t, err)
	noUser, err := http.Get(ts.URL + "/users/does-not-exist/avatar")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, noAvatar.StatusCode)
	assert.Equal(t, http.StatusNotFound, noUser.StatusCode)

	bodyA := decodeBody[map[string]string](t, noAvatar)
	bodyB := decodeBody[map[string]string](t, noUser)
	assert.Equal(t, bodyA, bodyB)
}
