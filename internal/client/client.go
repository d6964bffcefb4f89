// Package client is a typed HTTP client for the hemocheck API.
package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"hemocheck/internal/anemia"
	"hemocheck/internal/pipeline"
	"hemocheck/internal/server"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hemocheck: status %d", e.Status)
	}
	return fmt.Sprintf("hemocheck: %d %s", e.Status, e.Message)
}

type Client struct {
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New().SetBaseURL(base)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &Client{rest: r}
}

// SaveResult is the reply to SavePrediction.
type SaveResult struct {
	Message  string `json:"message"`
	RecordID int64  `json:"record_id"`
}

type userReply struct {
	UserID int64 `json:"user_id"`
}

func (c *Client) do(req *resty.Request, method, path string) error {
	var apiErr server.ErrorResponse
	resp, err := req.SetError(&apiErr).Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: apiErr.Error}
	}
	return nil
}

// Predict submits a blood panel.
func (c *Client) Predict(ctx context.Context, panel map[string]any) (pipeline.Result, error) {
	var res pipeline.Result
	err := c.do(c.rest.R().SetContext(ctx).SetBody(panel).SetResult(&res), resty.MethodPost, "/predict")
	return res, err
}

func (c *Client) Signup(ctx context.Context, email, password string) (int64, error) {
	return c.credentials(ctx, "/signup", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (int64, error) {
	return c.credentials(ctx, "/login", email, password)
}

func (c *Client) credentials(ctx context.Context, path, email, password string) (int64, error) {
	var reply userReply
	body := map[string]string{"email": email, "password": password}
	if err := c.do(c.rest.R().SetContext(ctx).SetBody(body).SetResult(&reply), resty.MethodPost, path); err != nil {
		return 0, err
	}
	return reply.UserID, nil
}

// SavePrediction appends a prediction to the user's ledger.
func (c *Client) SavePrediction(ctx context.Context, userID int64, hemoglobin float64, class anemia.Class) (SaveResult, error) {
	var res SaveResult
	body := map[string]any{
		"user_id":      userID,
		"hemoglobin":   hemoglobin,
		"anemia_class": class.String(),
	}
	err := c.do(c.rest.R().SetContext(ctx).SetBody(body).SetResult(&res), resty.MethodPost, "/save_prediction")
	return res, err
}

// History returns the user's saved predictions, oldest first.
func (c *Client) History(ctx context.Context, userID int64) ([]server.HistoryEntry, error) {
	var out []server.HistoryEntry
	path := "/history/" + strconv.FormatInt(userID, 10)
	if err := c.do(c.rest.R().SetContext(ctx).SetResult(&out), resty.MethodGet, path); err != nil {
		return nil, err
	}
	return out, nil
}

// Health returns the server's health report. An unhealthy server still
// returns its report along with an *APIError.
func (c *Client) Health(ctx context.Context) (pipeline.HealthStatus, error) {
	var h pipeline.HealthStatus
	resp, err := c.rest.R().SetContext(ctx).SetResult(&h).SetError(&h).Get("/health")
	if err != nil {
		return h, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return h, &APIError{Status: resp.StatusCode(), Message: "unhealthy"}
	}
	return h, nil
}

// ModelInfo describes the served model.
func (c *Client) ModelInfo(ctx context.Context) (server.ModelInfo, error) {
	var info server.ModelInfo
	err := c.do(c.rest.R().SetContext(ctx).SetResult(&info), resty.MethodGet, "/model/info")
	return info, err
}
