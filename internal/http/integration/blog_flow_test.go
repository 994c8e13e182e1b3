package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/inkwell/internal/auth"
	"github.com/geocoder89/inkwell/internal/cache"
	"github.com/geocoder89/inkwell/internal/config"
	apphttp "github.com/geocoder89/inkwell/internal/http"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/repo/memory"
	"github.com/geocoder89/inkwell/internal/security"
	"github.com/geocoder89/inkwell/internal/uploads"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

type app struct {
	router http.Handler
	jwt    *auth.Manager
	users  *memory.UsersRepo
}

func setupApp(t *testing.T) app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := filepath.Join(t.TempDir(), "data", "covers")

	cfg := config.Config{
		Env:            "test",
		JWTSecret:      "test-secret-key",
		BcryptCost:     bcrypt.MinCost,
		UploadDir:      dir,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"http://localhost:3000"},
	}

	covers, err := uploads.NewStore(dir)
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	users := memory.NewUsersRepo()
	jwt := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Users:   users,
		Posts:   memory.NewPostsRepo(users),
		Covers:  covers,
		Cache:   cache.NewMemory(time.Minute),
		Hasher:  security.NewHasher(cfg.BcryptCost),
		JWT:     jwt,
		Prom:    observability.NewProm(reg),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ping:    users.Ping,
	})

	return app{router: router, jwt: jwt, users: users}
}

func (a app) do(req *http.Request, session *http.Cookie) *httptest.ResponseRecorder {
	if session != nil {
		req.AddCookie(session)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	return w
}

func (a app) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return a.do(req, nil)
}

func (a app) sendPost(t *testing.T, method string, session *http.Cookie, fields map[string]string, filename string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}

	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write([]byte("cover-bytes"))
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(method, "/post", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return a.do(req, session)
}

func (a app) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), nil)
}

// register + login, returns the user id and the session cookie
func (a app) signIn(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)

	if w := a.postJSON("/register", body); w.Code != http.StatusOK {
		t.Fatalf("register %s: got %d body=%s", username, w.Code, w.Body.String())
	}

	w := a.postJSON("/login", body)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: got %d body=%s", username, w.Code, w.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	mustDecode(t, w, &resp)

	return resp.ID, sessionCookie(t, w)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == "token" && c.Value != "" {
			return c
		}
	}

	t.Fatalf("no session cookie in response: %v", w.Header().Values("Set-Cookie"))
	return nil
}

func mustDecode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
}

type apiError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

type postBody struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
	Cover   string `json:"cover"`
	Author  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
}

func TestBlogScenario(t *testing.T) {
	a := setupApp(t)

	// register alice
	w := a.postJSON("/register", `{"username":"alice","password":"pw1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}

	var registered struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	mustDecode(t, w, &registered)
	if registered.ID == "" || registered.Username != "alice" {
		t.Fatalf("unexpected register body: %s", w.Body.String())
	}

	// same username again fails and no second user appears
	w = a.postJSON("/register", `{"username":"alice","password":"other1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: got %d", w.Code)
	}
	if a.users.Count() != 1 {
		t.Fatalf("users = %d, want 1", a.users.Count())
	}

	// login ok, token decodes to the registered identity
	w = a.postJSON("/login", `{"username":"alice","password":"pw1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}
	aliceCookie := sessionCookie(t, w)

	claims, err := a.jwt.Verify(aliceCookie.Value)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != registered.ID || claims.Username != "alice" {
		t.Fatalf("token identity mismatch: %+v", claims.Identity())
	}

	// wrong password
	w = a.postJSON("/login", `{"username":"alice","password":"wrong"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong login: got %d", w.Code)
	}
	var loginErr apiError
	mustDecode(t, w, &loginErr)
	if loginErr.Error.Message != "Wrong credentials" {
		t.Fatalf("unexpected message %q", loginErr.Error.Message)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("failed login must not set a cookie")
	}

	// create a post as alice
	w = a.sendPost(t, http.MethodPost, aliceCookie, map[string]string{
		"title": "Hello", "summary": "first", "content": "<p>hi</p>",
	}, "cover.png")
	if w.Code != http.StatusOK {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}

	var created postBody
	mustDecode(t, w, &created)
	if created.Author.ID != registered.ID {
		t.Fatalf("author = %q, want %q", created.Author.ID, registered.ID)
	}

	// round trip by id
	w = a.get("/post/" + created.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var fetched postBody
	mustDecode(t, w, &fetched)
	if fetched.Title != "Hello" || fetched.Summary != "first" || fetched.Content != "<p>hi</p>" ||
		fetched.Cover != created.Cover || fetched.Author.Username != "alice" {
		t.Fatalf("round trip mismatch: %+v", fetched)
	}

	// bob may not update alice's post
	_, bobCookie := a.signIn(t, "bobby", "pw5678")

	w = a.sendPost(t, http.MethodPut, bobCookie, map[string]string{
		"id": created.ID, "title": "pwned", "summary": "x", "content": "x",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign update: got %d body=%s", w.Code, w.Body.String())
	}
	var updErr apiError
	mustDecode(t, w, &updErr)
	if updErr.Error.Message != "you are not the author" {
		t.Fatalf("unexpected message %q", updErr.Error.Message)
	}

	w = a.get("/post/" + created.ID)
	mustDecode(t, w, &fetched)
	if fetched.Title != "Hello" {
		t.Fatalf("post changed by a foreign update: %+v", fetched)
	}

	// alice can
	w = a.sendPost(t, http.MethodPut, aliceCookie, map[string]string{
		"id": created.ID, "title": "Hello again", "summary": "second", "content": "<p>edited</p>",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("author update: got %d body=%s", w.Code, w.Body.String())
	}

	w = a.get("/post/" + created.ID)
	mustDecode(t, w, &fetched)
	if fetched.Title != "Hello again" || fetched.Cover != created.Cover {
		t.Fatalf("update not visible: %+v", fetched)
	}

	// unknown post
	w = a.get("/post/00000000-0000-4000-8000-000000000000")
	if w.Code != http.StatusNotFound {
		t.Fatalf("absent post: got %d", w.Code)
	}
}

func TestFeedIsCappedAndNewestFirst(t *testing.T) {
	a := setupApp(t)

	_, cookie := a.signIn(t, "alice", "pw1234")

	for i := 0; i < 25; i++ {
		w := a.sendPost(t, http.MethodPost, cookie, map[string]string{
			"title": fmt.Sprintf("post %02d", i), "summary": "s", "content": "c",
		}, "c.jpg")
		if w.Code != http.StatusOK {
			t.Fatalf("create %d: got %d", i, w.Code)
		}
		// distinct createdAt values
		time.Sleep(2 * time.Millisecond)
	}

	w := a.get("/post")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d", w.Code)
	}

	var feed []postBody
	mustDecode(t, w, &feed)

	if len(feed) != 20 {
		t.Fatalf("feed size = %d, want 20", len(feed))
	}
	if feed[0].Title != "post 24" || feed[19].Title != "post 05" {
		t.Fatalf("unexpected order: first=%q last=%q", feed[0].Title, feed[19].Title)
	}
	for _, p := range feed {
		if p.Author.Username != "alice" {
			t.Fatalf("author username not resolved: %+v", p.Author)
		}
	}
}

func TestSessionEndpoints(t *testing.T) {
	a := setupApp(t)

	id, cookie := a.signIn(t, "alice", "pw1234")

	w := a.do(httptest.NewRequest(http.MethodGet, "/profile", nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("profile: got %d", w.Code)
	}
	var profile struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	mustDecode(t, w, &profile)
	if profile.ID != id || profile.Username != "alice" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	// garbage token is a 401, not a crash
	w = a.do(httptest.NewRequest(http.MethodGet, "/profile", nil), &http.Cookie{Name: "token", Value: "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d", w.Code)
	}
	var authErr apiError
	mustDecode(t, w, &authErr)
	if authErr.Error.RequestID == "" || authErr.Error.RequestID != w.Header().Get("X-Request-Id") {
		t.Fatalf("request id missing from error body: %s", w.Body.String())
	}

	w = a.do(httptest.NewRequest(http.MethodPost, "/logout", nil), cookie)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `"ok"` {
		t.Fatalf("logout: got %d %s", w.Code, w.Body.String())
	}

	// stateless token still verifies after logout
	w = a.do(httptest.NewRequest(http.MethodGet, "/profile", nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("replayed token: got %d", w.Code)
	}
}

func TestWritesRequireSessionAndMultipart(t *testing.T) {
	a := setupApp(t)

	w := a.sendPost(t, http.MethodPost, nil, map[string]string{"title": "t", "summary": "s", "content": "c"}, "c.png")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: got %d", w.Code)
	}

	_, cookie := a.signIn(t, "alice", "pw1234")

	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"title":"t"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := a.do(req, cookie); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("json create: got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`username=alice`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := a.do(req, nil); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form login: got %d", w.Code)
	}
}

func TestUploadsAreServed(t *testing.T) {
	a := setupApp(t)

	_, cookie := a.signIn(t, "alice", "pw1234")

	w := a.sendPost(t, http.MethodPost, cookie, map[string]string{"title": "t", "summary": "s", "content": "c"}, "cover.png")
	if w.Code != http.StatusOK {
		t.Fatalf("create: got %d", w.Code)
	}

	var created postBody
	mustDecode(t, w, &created)

	if !strings.HasPrefix(created.Cover, "uploads/") {
		t.Fatalf("cover leaks the disk path: %q", created.Cover)
	}

	w = a.get("/" + created.Cover)
	if w.Code != http.StatusOK || w.Body.String() != "cover-bytes" {
		t.Fatalf("static cover: got %d %q", w.Code, w.Body.String())
	}
}

func TestOpsEndpoints(t *testing.T) {
	a := setupApp(t)

	for path, want := range map[string]int{
		"/healthz":           http.StatusOK,
		"/readyz":            http.StatusOK,
		"/docs":              http.StatusOK,
		"/docs/openapi.yaml": http.StatusOK,
		"/metrics":           http.StatusOK,
	} {
		if w := a.get(path); w.Code != want {
			t.Errorf("%s: got %d, want %d", path, w.Code, want)
		}
	}

	// the scrape includes our own series once a request went through
	w := a.get("/metrics")
	if !strings.Contains(w.Body.String(), "inkwell_http_requests_total") {
		t.Fatalf("metrics body lacks request counter")
	}
}
