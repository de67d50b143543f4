package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quadra/internal/config"
	"quadra/internal/database"
	"quadra/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-with-at-least-32-chars"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Port:          "0",
		JWTSecret:     testSecret,
		PublicBaseURL: "https://quadra.test",
		FeatureFlags:  flags,
		Env:           "test",
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &testEnv{srv: srv, app: srv.newApp(ctx), db: db}
}

func (e *testEnv) profile(t *testing.T, name, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.srv.profileRepo.Upsert(context.Background(), &models.Profile{
		ID: id, Name: name, Username: username,
	}))
	return id
}

func (e *testEnv) post(t *testing.T, author uuid.UUID, title string, topic models.Topic, likes int, createdAt time.Time) uuid.UUID {
	t.Helper()
	p := &models.Post{
		UserID:    author,
		Title:     title,
		Content:   "conteúdo de " + title,
		Topic:     topic,
		Likes:     likes,
		CreatedAt: createdAt,
	}
	require.NoError(t, e.srv.postRepo.Create(context.Background(), p))
	return p.ID
}

func token(t *testing.T, viewer uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": viewer.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, viewer uuid.UUID) (*http.Response, []byte) {
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
	if viewer != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(t, viewer))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestNewServerRejectsBadRateLimits(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	_, err = NewServerWithDeps(&config.Config{JWTSecret: testSecret, RateLimits: "like=lots/1m"}, db, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMITS")
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.do(t, http.MethodGet, "/health/live", nil, uuid.Nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"up"`)

	resp, body = env.do(t, http.MethodGet, "/health/ready", nil, uuid.Nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestGetTopics(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.do(t, http.MethodGet, "/api/topics", nil, uuid.Nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var topics []TopicDTO
	require.NoError(t, json.Unmarshal(body, &topics))
	require.Len(t, topics, len(models.Topics))
	assert.Equal(t, models.TopicDicas, topics[0].Value)
	assert.Equal(t, "Progresso Físico", topics[1].Label)
}

func TestGetFeed(t *testing.T) {
	env := newTestEnv(t, "")
	ana := env.profile(t, "Ana Souza", "ana")
	bruno := env.profile(t, "Bruno Lima", "bruno")
	now := time.Now()
	a := env.post(t, ana, "Saque viagem", models.TopicDicas, 5, now.Add(-2*time.Hour))
	b := env.post(t, bruno, "Bloqueio duplo", models.TopicTaticas, 1, now.Add(-time.Hour))

	decode := func(body []byte) FeedResponse {
		var out FeedResponse
		require.NoError(t, json.Unmarshal(body, &out))
		return out
	}

	t.Run("recent first", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/feed", nil, uuid.Nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode(body)
		require.Len(t, got.Items, 2)
		assert.Equal(t, b, got.Items[0].ID)
		assert.Equal(t, a, got.Items[1].ID)
		assert.Equal(t, "Bruno Lima", got.Items[0].Author.Name)
		assert.Equal(t, "https://quadra.test/community/post/"+b.String(), got.Items[0].ShareURL)
	})

	t.Run("popular", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/feed?sort=popular", nil, uuid.Nil)
		got := decode(body)
		require.Len(t, got.Items, 2)
		assert.Equal(t, a, got.Items[0].ID)
		assert.Equal(t, models.SortPopular, got.Sort)
	})

	t.Run("topic filter", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/feed?topic=taticas", nil, uuid.Nil)
		got := decode(body)
		require.Len(t, got.Items, 1)
		assert.Equal(t, b, got.Items[0].ID)
	})

	t.Run("search by author username", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/feed?q=ANA", nil, uuid.Nil)
		got := decode(body)
		require.Len(t, got.Items, 1)
		assert.Equal(t, a, got.Items[0].ID)
		assert.Equal(t, 2, got.Total)
	})

	t.Run("compact view", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/feed?view=compact", nil, uuid.Nil)
		got := decode(body)
		require.NotEmpty(t, got.Items)
		assert.Empty(t, got.Items[0].Content)
		assert.NotEmpty(t, got.Items[0].Excerpt)
	})

	t.Run("invalid topic", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/feed?topic=surf", nil, uuid.Nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), models.CodeValidation)
	})
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t, "")
	viewer := env.profile(t, "Carla", "carla")

	t.Run("requires login", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/posts", map[string]string{"title": "x", "content": "y"}, uuid.Nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("validation", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/posts", map[string]string{"content": "y"}, viewer)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var out models.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "O título é obrigatório", out.Error)
	})

	t.Run("invalid link", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/posts", map[string]interface{}{
			"title": "Treino", "content": "Rotina", "links": []string{"quadra.test"},
		}, viewer)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("created", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/posts", map[string]interface{}{
			"title": "  Treino de passe ", "content": "Rotina", "links": []string{"https://quadra.test/video"},
		}, viewer)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var item struct {
			ID       uuid.UUID     `json:"id"`
			Title    string        `json:"title"`
			Topic    models.Topic  `json:"topic"`
			Likes    int           `json:"likes"`
			Comments int           `json:"comments"`
			Liked    bool          `json:"liked"`
			Author   models.Author `json:"author"`
		}
		require.NoError(t, json.Unmarshal(body, &item))
		assert.Equal(t, "Treino de passe", item.Title)
		assert.Equal(t, models.DefaultTopic, item.Topic)
		assert.Zero(t, item.Likes)
		assert.Zero(t, item.Comments)
		assert.False(t, item.Liked)
		assert.Equal(t, "carla", item.Author.Username)

		_, feedBody := env.do(t, http.MethodGet, "/api/feed", nil, uuid.Nil)
		assert.Contains(t, string(feedBody), item.ID.String())
	})
}

func TestTogglePostLike(t *testing.T) {
	env := newTestEnv(t, "")
	author := env.profile(t, "Ana", "ana")
	viewer := env.profile(t, "Bruno", "bruno")
	postID := env.post(t, author, "Manchete", models.TopicDicas, 5, time.Now())
	path := "/api/posts/" + postID.String() + "/like"

	resp, body := env.do(t, http.MethodPost, path, map[string]interface{}{"liked": false, "likes": 5}, viewer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"liked":true,"likes":6}`, string(body))

	resp, body = env.do(t, http.MethodPost, path, nil, viewer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"liked":false,"likes":5}`, string(body))

	resp, _ = env.do(t, http.MethodPost, path, nil, uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/posts/"+uuid.NewString()+"/like",
		map[string]interface{}{"liked": true, "likes": 3}, viewer)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var failed struct {
		Code  string `json:"code"`
		State struct {
			Liked bool `json:"liked"`
			Likes int  `json:"likes"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &failed))
	assert.Equal(t, models.CodeNotFound, failed.Code)
	assert.True(t, failed.State.Liked)
	assert.Equal(t, 3, failed.State.Likes)

	resp, _ = env.do(t, http.MethodPost, "/api/posts/not-a-uuid/like", nil, viewer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommentsFlow(t *testing.T) {
	env := newTestEnv(t, "")
	author := env.profile(t, "Ana", "ana")
	viewer := env.profile(t, "Bruno", "bruno")
	postID := env.post(t, author, "Recepção", models.TopicPosicao, 0, time.Now())
	commentsPath := "/api/posts/" + postID.String() + "/comments"

	resp, _ := env.do(t, http.MethodPost, commentsPath, map[string]string{"content": "   "}, viewer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, commentsPath, map[string]string{"content": "Ótima dica"}, viewer)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID      uuid.UUID     `json:"id"`
		Content string        `json:"content"`
		Author  models.Author `json:"author"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Ótima dica", created.Content)
	assert.Equal(t, "bruno", created.Author.Username)

	resp, body = env.do(t, http.MethodPost, "/api/comments/"+created.ID.String()+"/like", nil, author)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"liked":true,"likes":1}`, string(body))

	resp, body = env.do(t, http.MethodGet, commentsPath, nil, author)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []struct {
		ID    uuid.UUID `json:"id"`
		Likes int       `json:"likes"`
		Liked bool      `json:"liked"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, 1, list[0].Likes)
	assert.True(t, list[0].Liked)

	_, feedBody := env.do(t, http.MethodGet, "/api/feed", nil, uuid.Nil)
	var got FeedResponse
	require.NoError(t, json.Unmarshal(feedBody, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Comments)

	resp, _ = env.do(t, http.MethodPost, "/api/posts/"+uuid.NewString()+"/comments", map[string]string{"content": "oi"}, viewer)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t, "")
	viewer := uuid.New()

	resp, _ := env.do(t, http.MethodGet, "/api/profiles/"+viewer.String(), nil, uuid.Nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/profiles/me", map[string]string{"name": "Dani"}, viewer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/profiles/me", map[string]interface{}{
		"name": "Dani", "username": "dani", "positions": []string{"setter", " "},
	}, viewer)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/profiles/"+viewer.String(), nil, uuid.Nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.Profile
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "dani", p.Username)
	assert.Equal(t, []string{"setter"}, p.Positions)

	resp, _ = env.do(t, http.MethodPut, "/api/profiles/me", map[string]interface{}{
		"name": "Dani", "username": "dani", "gender": "outro",
	}, viewer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketFeedGating(t *testing.T) {
	t.Run("flag off", func(t *testing.T) {
		env := newTestEnv(t, "live_feed=off")
		resp, _ := env.do(t, http.MethodGet, "/api/ws/feed", nil, uuid.Nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("plain http request", func(t *testing.T) {
		env := newTestEnv(t, "live_feed=on")
		resp, _ := env.do(t, http.MethodGet, "/api/ws/feed", nil, uuid.Nil)
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	})

	t.Run("rollout excludes anonymous", func(t *testing.T) {
		env := newTestEnv(t, "live_feed=50%")
		resp, _ := env.do(t, http.MethodGet, "/api/ws/feed", nil, uuid.Nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestFeatureFlags(t *testing.T) {
	env := newTestEnv(t, "live_feed=on,beta_x=off")
	_, body := env.do(t, http.MethodGet, "/api/flags", nil, uuid.Nil)
	assert.JSONEq(t, `{"live_feed":true,"beta_x":false}`, string(body))
}
