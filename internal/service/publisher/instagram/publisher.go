package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/models"
	"github.com/ifuryst/postpone/internal/service/publisher"
)

const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// InstagramPublisher schedules posts through the Graph API media endpoint
type InstagramPublisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
	limiter ratelimit.Limiter
}

func NewInstagramPublisher(cfg Config, logger *zap.Logger) *InstagramPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RatePerMinute > 0 {
		limiter = ratelimit.New(cfg.RatePerMinute, ratelimit.Per(time.Minute))
	}

	return &InstagramPublisher{
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
	}
}

func (p *InstagramPublisher) GetPlatformName() string {
	return "instagram"
}

// MediaField names the form field that carries the media URL. Records without
// a kind are images; any kind other than image goes out as video_url.
func MediaField(kind string) string {
	if kind == "" || kind == models.MediaKindImage {
		return "image_url"
	}
	return "video_url"
}

func (p *InstagramPublisher) CreateScheduledPost(ctx context.Context, req publisher.PostRequest) (*publisher.PostResult, error) {
	form := url.Values{}
	form.Set(MediaField(req.MediaKind), req.MediaReference)
	form.Set("caption", req.Caption)
	form.Set("published", "false")
	form.Set("scheduled_publish_time", strconv.FormatInt(models.UnixSeconds(req.ScheduledAt), 10))
	form.Set("access_token", req.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, url.PathEscape(req.IdentityID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p.limiter.Take()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Warn("Publishing API unreachable",
			zap.String("identity", req.IdentityID),
			zap.Error(err))
		return &publisher.PostResult{Payload: errorPayload(map[string]any{"error": err.Error()})}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &publisher.PostResult{
			StatusCode: resp.StatusCode,
			Payload:    errorPayload(map[string]any{"error": fmt.Sprintf("failed to read response: %v", err), "status": resp.StatusCode}),
		}, nil
	}

	return parseResponse(resp.StatusCode, body), nil
}

// parseResponse treats any JSON object carrying an "id" key as success,
// whatever the HTTP status.
func parseResponse(status int, body []byte) *publisher.PostResult {
	result := &publisher.PostResult{StatusCode: status}

	if !json.Valid(body) {
		result.Payload = errorPayload(map[string]any{
			"error":  "unexpected response",
			"status": status,
			"body":   string(body),
		})
		return result
	}
	result.Payload = json.RawMessage(body)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return result
	}

	id, ok := fields["id"]
	if !ok {
		return result
	}

	result.Success = true
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		result.CreationID = s
	} else {
		result.CreationID = strings.TrimSpace(string(id))
	}
	return result
}

func errorPayload(fields map[string]any) json.RawMessage {
	data, err := json.Marshal(fields)
	if err != nil {
		return json.RawMessage(`{"error":"unencodable error"}`)
	}
	return data
}
