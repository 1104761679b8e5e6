package mushi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a mushi server.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("mushi: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("mushi: base url must be http or https, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{baseURL: u, apiKey: cfg.apiKey, http: hc, obs: obs}, nil
}

// Prediction is one ranked class.
type Prediction struct {
	Label      string
	Confidence float64
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component -> "ok"/"error"
}

// Predict uploads an encoded JPEG or PNG image and returns the k best classes.
// k <= 0 uses the server default.
func (c *Client) Predict(ctx context.Context, image []byte, filename string, k int) (preds []Prediction, err error) {
	start := time.Now()
	defer func() { c.obs.observe("predict", start, err, "bytes", len(image), "k", k) }()

	body, contentType, err := uploadBody(image, filename)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}

	resp, err := c.do(ctx, http.MethodPost, "/predict", q, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.obs.uploaded(len(image))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return decodeRanking(resp.Body)
}

// PredictFile reads an image from disk and predicts it.
func (c *Client) PredictFile(ctx context.Context, path string, k int) ([]Prediction, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("mushi: read image: %w", err)
	}
	return c.Predict(ctx, data, filepath.Base(path), k)
}

// Health fetches the server health. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (status HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil, "")
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeAPIError(resp)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return HealthStatus{}, fmt.Errorf("mushi: decode health: %w", err)
	}
	return HealthStatus{Status: body.Status, Checks: body.Checks}, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("mushi: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mushi: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// uploadBody builds the multipart form. The part Content-Type is sniffed from the bytes
// so the server can reject non-images before decoding.
func uploadBody(image []byte, filename string) (io.Reader, string, error) {
	if filename == "" {
		filename = "image"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", http.DetectContentType(image))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("mushi: create form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("mushi: write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("mushi: close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// decodeRanking reads a label -> confidence object keeping key order.
func decodeRanking(r io.Reader) ([]Prediction, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("mushi: decode ranking: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("mushi: decode ranking: expected object, got %v", tok)
	}

	var out []Prediction
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("mushi: decode ranking: %w", err)
		}
		label, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("mushi: decode ranking: unexpected token %v", tok)
		}
		var conf float64
		if err := dec.Decode(&conf); err != nil {
			return nil, fmt.Errorf("mushi: decode confidence for %s: %w", label, err)
		}
		out = append(out, Prediction{Label: label, Confidence: conf})
	}
	return out, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.Code == "" && resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Code = "rate_limited"
	}
	return apiErr
}

// IsAPIError reports whether err came from a server response and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
