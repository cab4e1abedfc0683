package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/jwt"
	"natours-api/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	resets []string
}

func (n *recordingNotifier) SendWelcome(context.Context, services.Recipient, string) error {
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ services.Recipient, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, url)
	return nil
}

type testApp struct {
	*App
	db       *gorm.DB
	cfg      *config.Config
	notifier *recordingNotifier
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := testutil.Config()
	for _, m := range mutate {
		m(cfg)
	}
	notifier := &recordingNotifier{}

	app := NewApp(Deps{
		DB:       db,
		Config:   cfg,
		Log:      zap.NewNop(),
		Notifier: notifier,
	})
	t.Cleanup(app.Ratings.Wait)

	return &testApp{App: app, db: db, cfg: cfg, notifier: notifier}
}

func (a *testApp) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := jwt.NewManager(a.cfg.JWT.Secret, a.cfg.JWT.ExpiresIn).Issue(user.ID, user.TokenVersion)
	require.NoError(t, err)
	return token
}

type result struct {
	status int
	header http.Header
	body   map[string]interface{}
	raw    string
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) result {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	res := result{status: resp.StatusCode, header: resp.Header, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &res.body))
	}
	return res
}

func dataOf(t *testing.T, res result) map[string]interface{} {
	t.Helper()

	data, ok := res.body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", res.raw)
	return data
}

func listOf(t *testing.T, res result) []interface{} {
	t.Helper()

	items, ok := dataOf(t, res)["data"].([]interface{})
	require.True(t, ok, "response has no data list: %s", res.raw)
	return items
}

func TestSignupReturnsTokenWithoutPassword(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodPost, "/api/v1/users/signup", "", map[string]string{
		"name":            "Ada Lovelace",
		"email":           "ada@example.com",
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
		"role":            "admin",
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)

	assert.Equal(t, "success", res.body["status"])
	assert.NotEmpty(t, res.body["token"])
	assert.Contains(t, res.header.Get("Set-Cookie"), "jwt=")
	assert.Contains(t, strings.ToLower(res.header.Get("Set-Cookie")), "httponly")

	user := dataOf(t, res)["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, res.raw, "pass1234")
}

func TestLoginWithWrongPassword(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.AppMode = "prod" })
	testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)

	res := app.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, map[string]interface{}{
		"status":  "fail",
		"message": "Incorrect email or password",
	}, res.body)

	res = app.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Please provide email and password!", res.body["message"])

	res = app.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": testutil.Password,
	})
	assert.Equal(t, http.StatusOK, res.status)
	assert.NotEmpty(t, res.body["token"])
}

func TestDevErrorsCarryDetail(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "fail", res.body["status"])
	assert.Equal(t, "You are not logged in! Please log in to get access.", res.body["message"])
	detail := res.body["error"].(map[string]interface{})
	assert.Equal(t, string(domain.KindUnauthenticated), detail["kind"])
	assert.EqualValues(t, 401, detail["statusCode"])
}

func TestRoleRestrictions(t *testing.T) {
	app := newTestApp(t)
	user := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)
	admin := testutil.CreateUser(t, app.db, "Root", "root@example.com", domain.RoleAdmin)

	res := app.do(t, http.MethodGet, "/api/v1/users", app.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "You do not have permission to perform this action", res.body["message"])

	res = app.do(t, http.MethodGet, "/api/v1/users", app.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.EqualValues(t, 2, res.body["results"])
	assert.Equal(t, "no-store, no-cache, must-revalidate", res.header.Get("Cache-Control"))

	res = app.do(t, http.MethodPost, "/api/v1/tours", app.tokenFor(t, user), map[string]interface{}{"name": "The Forest Hiker"})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = app.do(t, http.MethodPost, "/api/v1/users", app.tokenFor(t, admin), map[string]string{"name": "x"})
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "This route is not defined! Please use /signup instead", res.body["message"])
}

func TestCurrentUserRoutes(t *testing.T) {
	app := newTestApp(t)
	user := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)
	token := app.tokenFor(t, user)

	res := app.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.Equal(t, user.ID, dataOf(t, res)["data"].(map[string]interface{})["id"])

	res = app.do(t, http.MethodPatch, "/api/v1/users/updateMe", token, map[string]string{"password": "newpass123"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = app.do(t, http.MethodPatch, "/api/v1/users/updateMe", token, map[string]string{"name": "Ada Lovelace", "role": "admin"})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	updated := dataOf(t, res)["user"].(map[string]interface{})
	assert.Equal(t, "Ada Lovelace", updated["name"])
	assert.Equal(t, "user", updated["role"])

	res = app.do(t, http.MethodDelete, "/api/v1/users/deleteMe", token, nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	res = app.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "The user belonging to this token does no longer exist.", res.body["message"])
}

func TestAdminUserUpdateStoresLowercasedEmail(t *testing.T) {
	app := newTestApp(t)
	user := testutil.CreateUser(t, app.db, "Bob", "bob@example.com", domain.RoleUser)
	admin := testutil.CreateUser(t, app.db, "Root", "root@example.com", domain.RoleAdmin)

	res := app.do(t, http.MethodPatch, "/api/v1/users/"+user.ID, app.tokenFor(t, admin), map[string]string{
		"name":  "  Bob Builder ",
		"email": " Bob@Example.COM ",
	})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	updated := dataOf(t, res)["data"].(map[string]interface{})
	assert.Equal(t, "bob@example.com", updated["email"])
	assert.Equal(t, "Bob Builder", updated["name"])

	var stored models.User
	require.NoError(t, app.db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, "bob@example.com", stored.Email)

	res = app.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": testutil.Password,
	})
	assert.Equal(t, http.StatusOK, res.status, res.raw)

	res = app.do(t, http.MethodPatch, "/api/v1/users/"+user.ID, app.tokenFor(t, admin), map[string]string{
		"email": "ROOT@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, res.status, res.raw)
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)

	res := app.do(t, http.MethodPost, "/api/v1/users/forgotPassword", "", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.Equal(t, "Token sent to email!", res.body["message"])

	require.Len(t, app.notifier.resets, 1)
	url := app.notifier.resets[0]
	token := url[strings.LastIndex(url, "/")+1:]

	body := map[string]string{"password": "newpass123", "passwordConfirm": "newpass123"}
	res = app.do(t, http.MethodPatch, "/api/v1/users/resetPassword/"+token, "", body)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.NotEmpty(t, res.body["token"])

	res = app.do(t, http.MethodPatch, "/api/v1/users/resetPassword/"+token, "", body)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Token is invalid or has expired", res.body["message"])
}

func TestTourListing(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateTour(t, app.db, "The Forest Hiker", 397, "easy")
	testutil.CreateTour(t, app.db, "The Sea Explorer", 497, "medium")
	testutil.CreateTour(t, app.db, "The City Wanderer", 1197, "easy")
	secret := testutil.CreateTour(t, app.db, "The Secret Hideaway", 50, "easy")
	require.NoError(t, app.db.Model(&models.Tour{}).Where("id = ?", secret.ID).Update("secret_tour", true).Error)

	res := app.do(t, http.MethodGet, "/api/v1/tours?sort=price&limit=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.EqualValues(t, 1, res.body["results"])
	items := listOf(t, res)
	assert.Equal(t, "The City Wanderer", items[0].(map[string]interface{})["name"])
	assert.Equal(t, "public, max-age=60", res.header.Get("Cache-Control"))

	res = app.do(t, http.MethodGet, "/api/v1/tours?difficulty=easy&price[lt]=1000&fields=name,price", "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	items = listOf(t, res)
	require.Len(t, items, 1)
	only := items[0].(map[string]interface{})
	assert.Equal(t, "The Forest Hiker", only["name"])
	assert.Contains(t, only, "id")
	assert.NotContains(t, only, "summary")

	res = app.do(t, http.MethodGet, "/api/v1/tours/top-5-cheap", "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	items = listOf(t, res)
	require.Len(t, items, 3)
	cheapest := items[0].(map[string]interface{})
	assert.Equal(t, "The Forest Hiker", cheapest["name"])
	assert.NotContains(t, cheapest, "imageCover")

	res = app.do(t, http.MethodGet, "/api/v1/tours?page=4611686018427387905&limit=2", "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.EqualValues(t, 0, res.body["results"])
	assert.Empty(t, listOf(t, res))

	res = app.do(t, http.MethodGet, "/api/v1/tours/"+secret.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "No document found with that ID", res.body["message"])
}

func TestTourWritesByStaff(t *testing.T) {
	app := newTestApp(t)
	lead := testutil.CreateUser(t, app.db, "Kate", "kate@example.com", domain.RoleLeadGuide)
	guide := testutil.CreateUser(t, app.db, "Leo", "leo@example.com", domain.RoleGuide)
	token := app.tokenFor(t, lead)

	res := app.do(t, http.MethodPost, "/api/v1/tours", token, map[string]interface{}{
		"name":            "The Northern Lights",
		"duration":        3,
		"maxGroupSize":    12,
		"difficulty":      "easy",
		"price":           997,
		"summary":         "Watch the aurora",
		"imageCover":      "tour-9-cover.jpg",
		"ratingsQuantity": 500,
		"guideIds":        []string{guide.ID},
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	tour := dataOf(t, res)["data"].(map[string]interface{})
	assert.Equal(t, "the-northern-lights", tour["slug"])
	assert.EqualValues(t, 0, tour["ratingsQuantity"])
	assert.EqualValues(t, 4.5, tour["ratingsAverage"])
	id := tour["id"].(string)

	res = app.do(t, http.MethodPost, "/api/v1/tours", token, map[string]interface{}{
		"name":       "Short",
		"duration":   3,
		"difficulty": "extreme",
	})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.NotEmpty(t, res.body["errors"])

	res = app.do(t, http.MethodPatch, "/api/v1/tours/"+id, token, map[string]interface{}{"price": 1097})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	updated := dataOf(t, res)["data"].(map[string]interface{})
	assert.EqualValues(t, 1097, updated["price"])
	assert.Len(t, updated["guides"], 1)

	res = app.do(t, http.MethodGet, "/api/v1/tours/"+id, "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	weeks := dataOf(t, res)["data"].(map[string]interface{})["durationWeeks"].(float64)
	assert.InDelta(t, 0.43, weeks, 0.01)

	res = app.do(t, http.MethodDelete, "/api/v1/tours/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	res = app.do(t, http.MethodDelete, "/api/v1/tours/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestReviewsRecomputeTourRatings(t *testing.T) {
	app := newTestApp(t)
	tour := testutil.CreateTour(t, app.db, "The Forest Hiker", 397, "easy")
	ada := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)
	bob := testutil.CreateUser(t, app.db, "Bob", "bob@example.com", domain.RoleUser)
	admin := testutil.CreateUser(t, app.db, "Root", "root@example.com", domain.RoleAdmin)

	res := app.do(t, http.MethodPost, "/api/v1/tours/"+tour.ID+"/reviews", app.tokenFor(t, ada),
		map[string]interface{}{"review": "Loved it", "rating": 5})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	review := dataOf(t, res)["data"].(map[string]interface{})
	assert.Equal(t, ada.ID, review["userId"])
	assert.Equal(t, tour.ID, review["tourId"])

	res = app.do(t, http.MethodPost, "/api/v1/reviews", app.tokenFor(t, bob),
		map[string]interface{}{"review": "Fine", "rating": 3, "tourId": tour.ID})
	require.Equal(t, http.StatusCreated, res.status, res.raw)

	// one review per user and tour
	res = app.do(t, http.MethodPost, "/api/v1/tours/"+tour.ID+"/reviews", app.tokenFor(t, ada),
		map[string]interface{}{"review": "Again", "rating": 1})
	assert.Equal(t, http.StatusBadRequest, res.status)

	// admins cannot post reviews
	res = app.do(t, http.MethodPost, "/api/v1/tours/"+tour.ID+"/reviews", app.tokenFor(t, admin),
		map[string]interface{}{"review": "Admin", "rating": 1})
	assert.Equal(t, http.StatusForbidden, res.status)

	app.Ratings.Wait()

	var stored models.Tour
	require.NoError(t, app.db.First(&stored, "id = ?", tour.ID).Error)
	assert.Equal(t, 2, stored.RatingsQuantity)
	assert.Equal(t, 4.0, stored.RatingsAverage)

	res = app.do(t, http.MethodGet, "/api/v1/tours/"+tour.ID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.EqualValues(t, 2, res.body["results"])

	res = app.do(t, http.MethodGet, "/api/v1/tours/"+tour.ID, "", nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	reviews := dataOf(t, res)["data"].(map[string]interface{})["reviews"].([]interface{})
	require.Len(t, reviews, 2)
	author := reviews[0].(map[string]interface{})["user"].(map[string]interface{})
	assert.NotContains(t, author, "email")

	id := review["id"].(string)
	res = app.do(t, http.MethodDelete, "/api/v1/reviews/"+id, app.tokenFor(t, admin), nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	app.Ratings.Wait()

	require.NoError(t, app.db.First(&stored, "id = ?", tour.ID).Error)
	assert.Equal(t, 1, stored.RatingsQuantity)
	assert.Equal(t, 3.0, stored.RatingsAverage)
}

func TestReviewOnSecretTourIsRejected(t *testing.T) {
	app := newTestApp(t)
	tour := testutil.CreateTour(t, app.db, "The Secret Hideaway", 2497, "easy")
	require.NoError(t, app.db.Model(&models.Tour{}).Where("id = ?", tour.ID).Update("secret_tour", true).Error)
	ada := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)

	res := app.do(t, http.MethodPost, "/api/v1/tours/"+tour.ID+"/reviews", app.tokenFor(t, ada),
		map[string]interface{}{"review": "Shh", "rating": 5})
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestUnknownRoutes(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodGet, "/api/v1/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Can't find /api/v1/nothing-here on this server!", res.body["message"])

	res = app.do(t, http.MethodGet, "/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.True(t, strings.HasPrefix(res.header.Get("Content-Type"), "text/html"))
	assert.Contains(t, res.raw, "Something went wrong!")
	assert.Contains(t, res.raw, "Can&#39;t find /nothing-here on this server!")
}

func TestGeoRoutesRejectNonFiniteInput(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateTour(t, app.db, "The Forest Hiker", 397, "easy")

	for _, path := range []string{
		"/api/v1/tours/distances/NaN,NaN/unit/km",
		"/api/v1/tours/distances/34.1,Inf/unit/mi",
		"/api/v1/tours/tours-within/NaN/center/34.1,-118.1/unit/km",
		"/api/v1/tours/tours-within/Inf/center/34.1,-118.1/unit/km",
	} {
		res := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, res.status, path)
	}

	res := app.do(t, http.MethodGet, "/api/v1/tours/distances/NaN,NaN/unit/km", "", nil)
	assert.Equal(t, "Please provide latitude and longitude in the format lat,lng.", res.body["message"])
}

func TestRootAndHealth(t *testing.T) {
	app := newTestApp(t)
	user := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)

	res := app.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "running", res.body["status"])
	assert.NotContains(t, res.body, "user")

	res = app.do(t, http.MethodGet, "/", app.tokenFor(t, user), nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Ada", res.body["user"].(map[string]interface{})["name"])

	res = app.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "healthy", res.body["checks"].(map[string]interface{})["database"])
}

func TestCheckoutWithoutPaymentsConfigured(t *testing.T) {
	app := newTestApp(t)
	tour := testutil.CreateTour(t, app.db, "The Forest Hiker", 397, "easy")
	user := testutil.CreateUser(t, app.db, "Ada", "ada@example.com", domain.RoleUser)

	res := app.do(t, http.MethodGet, "/api/v1/booking/checkout-session/"+tour.ID, app.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "Payments are not configured on this server.", res.body["message"])

	res = app.do(t, http.MethodGet, "/api/v1/booking/my-tours", app.tokenFor(t, user), nil)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.EqualValues(t, 0, res.body["results"])

	res = app.do(t, http.MethodGet, "/api/v1/booking", app.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestRateLimiting(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Max = 100
		cfg.RateLimit.Window = time.Hour
	})

	login := map[string]string{"email": "ada@example.com", "password": "wrong-pass"}
	for i := 0; i < 5; i++ {
		res := app.do(t, http.MethodPost, "/api/v1/users/login", "", login)
		require.Equal(t, http.StatusUnauthorized, res.status)
	}

	res := app.do(t, http.MethodPost, "/api/v1/users/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "Too many login attempts, please try again in a minute!", res.body["message"])
}
