package ranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

const (
	// DefaultTimeout bounds a rank call.
	DefaultTimeout = 10 * time.Second

	// ServiceName identifies the ranker in errors and metrics.
	ServiceName = "ranker"

	answerDataField = "answer_data"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the ranker's rank endpoint.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a ranker client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

type rankResponse struct {
	Answers *[]rankAnswer `json:"answers"`
}

type rankAnswer struct {
	AnswerID   *string  `json:"answer_id"`
	Confidence *float64 `json:"confidence"`
}

// Rank posts the answer file as multipart field answer_data to
// /v1/rankers/{rankerID}/rank.
func (c *Client) Rank(ctx context.Context, rankerID, filename string, data io.Reader) ([]Answer, error) {
	if rankerID == "" {
		return nil, fmt.Errorf("ranker id is required")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(answerDataField, filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("writing answer file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/rankers/%s/rank", c.baseURL, url.PathEscape(rankerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("building rank request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := upstream.NewUpstreamError(ServiceName, "rank", resp)
		c.logger.Warn("rank request failed",
			"ranker_id", rankerID,
			"status", upErr.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, upErr
	}

	var parsed rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding rank response: %w", err)
	}
	answers, err := parsed.toAnswers()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("rank request completed",
		"ranker_id", rankerID,
		"answers", len(answers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return answers, nil
}

func (r rankResponse) toAnswers() ([]Answer, error) {
	if r.Answers == nil {
		return nil, fmt.Errorf("rank response has no \"answers\" list")
	}
	out := make([]Answer, len(*r.Answers))
	for i, a := range *r.Answers {
		if a.AnswerID == nil {
			return nil, fmt.Errorf("rank response answer %d has no \"answer_id\"", i)
		}
		if a.Confidence == nil {
			return nil, fmt.Errorf("rank response answer %d has no \"confidence\"", i)
		}
		out[i] = Answer{AnswerID: *a.AnswerID, Confidence: *a.Confidence}
	}
	return out, nil
}

var _ Ranker = (*Client)(nil)
