package voyage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rankbridge/rerankgate/pkg/domain"
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/rankbridge/rerankgate/pkg/infra/httpx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const rerankPath = "/rerank"

type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	DefaultModel    string
	AllowedModels   []string
	ReturnDocuments bool
	// Options carries extra upstream arguments (e.g. truncation) decoded
	// into the payload as-is.
	Options map[string]interface{}
}

type requestOptions struct {
	Truncation *bool `json:"truncation" mapstructure:"truncation"`
}

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=client_mock.go --case=underscore --with-expecter

type Client interface {
	Rerank(ctx context.Context, req *rerank.Request) (*rerank.Result, error)
}

type client struct {
	cfg        Config
	httpClient httpx.Client
	breaker    httpx.CircuitBreaker
	logger     *logrus.Logger
	sf         singleflight.Group
}

func NewClient(cfg Config, httpClient httpx.Client, breaker httpx.CircuitBreaker, logger *logrus.Logger) Client {
	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

type rerankPayload struct {
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	Model           string   `json:"model"`
	TopK            int      `json:"top_k,omitempty"`
	ReturnDocuments bool     `json:"return_documents,omitempty"`
	Truncation      *bool    `json:"truncation,omitempty"`
}

func (c *client) Rerank(ctx context.Context, req *rerank.Request) (*rerank.Result, error) {
	if c.cfg.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}

	model := c.resolveModel(req.Model)

	// Identical in-flight requests share one upstream call.
	v, err, _ := c.sf.Do(Fingerprint(model, req), func() (any, error) {
		return c.rerank(ctx, model, req)
	})
	if err != nil {
		return nil, err
	}
	result, ok := v.(*rerank.Result)
	if !ok {
		return nil, fmt.Errorf("unexpected rerank result type %T", v)
	}
	return result, nil
}

func (c *client) rerank(ctx context.Context, model string, req *rerank.Request) (*rerank.Result, error) {
	body, err := json.Marshal(c.buildPayload(model, req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+rerankPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var respBody []byte
	var statusCode int
	err = c.breaker.Execute(func() error {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		decoded, _, err := httpx.DecodeBody(resp.Header.Get("Content-Encoding"), raw)
		if err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}

		respBody = decoded
		statusCode = resp.StatusCode
		return nil
	})
	if err != nil {
		return nil, domain.NewUnreachableError(err)
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, domain.NewUpstreamError(statusCode, respBody)
	}

	parsed := parseRerankResponse(respBody, len(req.Documents))

	result := &rerank.Result{
		Model: model,
		Raw:   respBody,
		Usage: parsed.Usage,
	}
	if parsed.Model != "" {
		result.Model = parsed.Model
	}

	if len(parsed.Scores) > 0 {
		result.Ranked = rerank.Join(req.Documents, parsed.Scores, req.Limit())
		return result, nil
	}

	// Upstream answered 2xx with a shape we cannot interpret. Hand the
	// caller their documents back unscored alongside the raw body.
	c.logger.WithField("model", model).Warn("rerank response carried no usable scores")
	result.Ranked = rerank.Passthrough(req.Documents)
	return result, nil
}

func (c *client) buildPayload(model string, req *rerank.Request) rerankPayload {
	payload := rerankPayload{
		Query:           req.Query,
		Documents:       make([]string, 0, len(req.Documents)),
		Model:           model,
		ReturnDocuments: c.cfg.ReturnDocuments,
	}
	for _, doc := range req.Documents {
		payload.Documents = append(payload.Documents, doc.Content)
	}
	if req.TopK > 0 {
		payload.TopK = req.Limit()
	}

	if len(c.cfg.Options) > 0 {
		var opts requestOptions
		if err := mapstructure.Decode(c.cfg.Options, &opts); err == nil {
			payload.Truncation = opts.Truncation
		}
	}

	return payload
}

func (c *client) resolveModel(requested string) string {
	if requested == "" {
		return c.cfg.DefaultModel
	}
	if !isAllowedModel(requested, c.cfg.AllowedModels) {
		return c.cfg.DefaultModel
	}
	return requested
}

// isAllowedModel reports whether the requested model may be forwarded.
// An empty allow-list permits any model.
func isAllowedModel(model string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if m == model {
			return true
		}
	}
	return false
}

// Fingerprint identifies a rerank request by its scoring inputs. Used as
// the response cache key and for in-flight deduplication.
func Fingerprint(model string, req *rerank.Request) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(req.Query))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", req.TopK)
	for _, doc := range req.Documents {
		h.Write([]byte{0})
		h.Write([]byte(doc.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
