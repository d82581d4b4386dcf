package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/service/publisher"
)

func newRequest(kind string) publisher.PostRequest {
	return publisher.PostRequest{
		IdentityID:     "17841400000",
		AccessToken:    "EAAB-token",
		MediaReference: "http://x/img.jpg",
		MediaKind:      kind,
		Caption:        "Fresh ink Friday",
		ScheduledAt:    time.Date(2025, 12, 15, 18, 0, 0, 900_000_000, time.UTC),
	}
}

func TestCreateScheduledPostSendsForm(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Write([]byte(`{"id":"999"}`))
	}))
	defer srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: srv.URL + "/v17.0/"}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.Equal(t, "/v17.0/17841400000/media", path)
	assert.Equal(t, "http://x/img.jpg", got.Get("image_url"))
	assert.Empty(t, got.Get("video_url"))
	assert.Equal(t, "Fresh ink Friday", got.Get("caption"))
	assert.Equal(t, "false", got.Get("published"))
	assert.Equal(t, "1765821600", got.Get("scheduled_publish_time"))
	assert.Equal(t, "EAAB-token", got.Get("access_token"))

	assert.True(t, result.Success)
	assert.Equal(t, "999", result.CreationID)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestCreateScheduledPostUsesVideoField(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		got = r.PostForm
		w.Write([]byte(`{"id":12345}`))
	}))
	defer srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: srv.URL}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("video"))
	require.NoError(t, err)

	assert.Equal(t, "http://x/img.jpg", got.Get("video_url"))
	assert.Empty(t, got.Get("image_url"))
	assert.True(t, result.Success)
	assert.Equal(t, "12345", result.CreationID)
}

func TestCreateScheduledPostFailurePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: srv.URL}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Empty(t, result.CreationID)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.JSONEq(t, `{"error":"invalid_token"}`, string(result.Payload))
}

func TestIDDecidesSuccessRegardlessOfStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"id":"777","warning":"slow"}`))
	}))
	defer srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: srv.URL}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "777", result.CreationID)
}

func TestNonJSONResponseIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: srv.URL}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.JSONEq(t, `{"error":"unexpected response","status":502,"body":"<html>bad gateway</html>"}`, string(result.Payload))
}

func TestTransportFailureIsSyntheticPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	p := NewInstagramPublisher(Config{BaseURL: base}, zap.NewNop())
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.StatusCode)
	assert.Contains(t, string(result.Payload), `"error"`)
}

func TestRequestTimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewInstagramPublisher(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	result, err := p.CreateScheduledPost(context.Background(), newRequest("image"))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, result.Success)
}

func TestParseResponseShapes(t *testing.T) {
	assert.False(t, parseResponse(200, []byte(`[{"id":"1"}]`)).Success)
	assert.False(t, parseResponse(200, []byte(`"id"`)).Success)
	assert.False(t, parseResponse(200, []byte(`{"data":{"id":"1"}}`)).Success)
	assert.True(t, parseResponse(200, []byte(`{"id":"1"}`)).Success)
}

func TestMediaField(t *testing.T) {
	assert.Equal(t, "image_url", MediaField("image"))
	assert.Equal(t, "video_url", MediaField("video"))
	assert.Equal(t, "image_url", MediaField(""))
	assert.Equal(t, "video_url", MediaField("reel"))
}
