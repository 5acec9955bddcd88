// Package writer implements the pipeline step handlers for the content
// writing services. It calls the hosted writer-model API for each step and
// falls back to deterministic synthetic output when no API key is configured,
// so local and CI environments run the full pipeline without credentials.
package writer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
)

// Options controls how the writer handler is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Handler implements pipeline.Handler against the writer-model API.
type Handler struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// New creates a writer handler from options, applying defaults.
func New(opts Options) (*Handler, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.writer.example.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "copywriter-large"
	}
	return &Handler{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (h *Handler) Model() string {
	return h.model
}

type completionRequest struct {
	Model      string         `json:"model"`
	Task       string         `json:"task"`
	Parameters map[string]any `json:"parameters"`
	Previous   map[string]any `json:"previous,omitempty"`
}

type completionResponse struct {
	Output map[string]any `json:"output"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Handle performs one pipeline step. Policy rejections from the API are
// permanent; HTTP 5xx, 429 and transport errors are transient.
func (h *Handler) Handle(ctx context.Context, order *domain.Order, step string, params map[string]any) (*pipeline.Result, error) {
	if h.apiKey == "" {
		return h.synthetic(order, step, params), nil
	}

	var previous map[string]any
	if len(order.Result) > 0 {
		if err := json.Unmarshal(order.Result, &previous); err != nil {
			return nil, fmt.Errorf("%w: decode previous step result: %v", domain.ErrPermanent, err)
		}
	}

	payload, err := json.Marshal(completionRequest{
		Model:      h.model,
		Task:       step,
		Parameters: params,
		Previous:   previous,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: call writer api: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: writer api returned %d", domain.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: writer api returned %d: %s", domain.ErrPermanent, resp.StatusCode, truncate(body, 200))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrTransient, err)
	}
	if parsed.Error.Code != "" {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrPermanent, parsed.Error.Code, parsed.Error.Message)
	}

	h.logger.Debug().
		Str("order_id", order.ID).
		Str("step", step).
		Str("model", h.model).
		Msg("writer: step completed")
	return &pipeline.Result{Payload: parsed.Output}, nil
}

// synthetic produces deterministic offline output keyed by order and step.
func (h *Handler) synthetic(order *domain.Order, step string, params map[string]any) *pipeline.Result {
	topic, _ := params["topic"].(string)
	seed := sha256.Sum256([]byte(order.ID + ":" + step))
	token := hex.EncodeToString(seed[:8])

	payload := map[string]any{
		"model":     h.model,
		"synthetic": true,
		"step":      step,
	}
	switch step {
	case domain.StepAnalyze:
		payload["outline"] = fmt.Sprintf("Outline for %q (%s)", topic, token)
		payload["keywords"] = []string{topic, "guide", "2026"}
	case domain.StepGenerate:
		payload["draft"] = fmt.Sprintf("Draft article about %q. [%s]", topic, token)
		payload["word_count"] = 900
	case domain.StepQualityCheck:
		payload["approved"] = true
		payload["readability"] = 72
		// The last step's payload is what the order keeps, so the reviewed
		// draft is carried forward into it.
		var previous map[string]any
		if err := json.Unmarshal(order.Result, &previous); err == nil {
			if draft, ok := previous["draft"]; ok {
				payload["draft"] = draft
			}
		}
	}
	return &pipeline.Result{Payload: payload}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
