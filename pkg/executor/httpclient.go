package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/security"
	"github.com/insanalamin/mechaway/pkg/types"
	"github.com/xeipuuv/gojsonschema"
)

// HTTPClientParams is the decoded Params for a NodeKindHTTPClient node.
// Method is static configuration; URL, Headers and Body are ordinarily
// bound through input pins (e.g. "url" from $json.endpoint, an
// Authorization header from $secret.api_key) so HTTPClientParams only
// carries the pieces that never vary per activation. ResponseSchema, when
// set, is a JSON Schema the decoded response body is validated against;
// a non-conforming body fails the node unless StrictSchema is false, in
// which case validation errors ride along as output metadata instead.
type HTTPClientParams struct {
	Method         string      `json:"method"` // GET, POST, PUT, PATCH, DELETE; default GET
	ResponseSchema interface{} `json:"response_schema,omitempty"`
	StrictSchema   bool        `json:"strict_schema,omitempty"`
}

// HTTPClientExecutor performs an outbound HTTP call through the zero-trust
// network policy in pkg/security, with a shared connection-pooled client.
// It does not count or limit the number of calls made per activation.
type HTTPClientExecutor struct {
	mu     sync.RWMutex
	client *http.Client
}

// NewHTTPClientExecutor creates an HTTPClient node executor.
func NewHTTPClientExecutor() *HTTPClientExecutor { return &HTTPClientExecutor{} }

func (e *HTTPClientExecutor) Kind() types.NodeKind { return types.NodeKindHTTPClient }

func (e *HTTPClientExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params HTTPClientParams
	if len(node.Params) > 0 {
		if err := json.Unmarshal(node.Params, &params); err != nil {
			return nil, errs.Wrap(errs.Internal, "invalid http_client params", err)
		}
	}
	method := strings.ToUpper(params.Method)
	if method == "" {
		method = http.MethodGet
	}

	url, _ := inputs["url"].(string)
	if url == "" {
		return nil, errs.New(errs.BindingEvalError, "http_client node requires a non-empty \"url\" input")
	}

	cfg := ctx.Config()
	if !cfg.AllowHTTP {
		return nil, errs.New(errs.UpstreamError, "HTTP requests are disabled (AllowHTTP=false)")
	}

	ssrf := security.NewSSRFProtectionWithConfig(security.SSRFConfig{
		AllowedSchemes:     []string{"http", "https"},
		BlockPrivateIPs:    !cfg.AllowPrivateIPs,
		BlockLocalhost:     !cfg.AllowLocalhost,
		BlockLinkLocal:     !cfg.AllowLinkLocal,
		BlockCloudMetadata: !cfg.AllowCloudMetadata,
		AllowedDomains:     cfg.AllowedDomains,
	})
	if err := ssrf.ValidateURL(url); err != nil {
		return nil, errs.Wrap(errs.UpstreamError, "URL rejected by network policy", err)
	}

	var bodyReader io.Reader
	if body, ok := inputs["body"]; ok && body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx.Context(), method, url, bodyReader)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to build HTTP request", err)
	}
	if headers, ok := inputs["headers"].(map[string]types.Value); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.getOrCreateClient(cfg, ssrf)
	resp, err := client.Do(req) //nolint:bodyclose // closed via defer below after assignment succeeds
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamError, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, cfg.MaxResponseSize)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamError, "failed to read response body", err)
	}

	var decoded types.Value = string(respBody)
	var asJSON interface{}
	if json.Unmarshal(respBody, &asJSON) == nil {
		decoded = asJSON
	}

	output := map[string]types.Value{
		"status_code": resp.StatusCode,
		"headers":     resp.Header,
		"body":        decoded,
	}

	if params.ResponseSchema != nil {
		valid, schemaErrors, err := validateAgainstSchema(params.ResponseSchema, decoded)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "invalid response_schema", err)
		}
		if !valid && params.StrictSchema {
			return nil, errs.Newf(errs.UpstreamError, "response failed schema validation: %d errors", len(schemaErrors))
		}
		output["schema_valid"] = valid
		if !valid {
			output["schema_errors"] = schemaErrors
		}
	}

	return types.ValueArray{output}, nil
}

// validateAgainstSchema checks data against a JSON Schema, describing each
// violation as a field/description pair. Used by HTTPClient's optional
// response_schema to fail fast on an unexpected upstream shape instead of
// propagating malformed data deeper into the workflow.
func validateAgainstSchema(schema interface{}, data interface{}) (bool, []map[string]interface{}, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return false, nil, fmt.Errorf("invalid schema format: %w", err)
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return false, nil, fmt.Errorf("failed to serialize data for validation: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(dataBytes))
	if err != nil {
		return false, nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	violations := make([]map[string]interface{}, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, map[string]interface{}{
			"field":       e.Field(),
			"type":        e.Type(),
			"description": e.Description(),
		})
	}
	return false, violations, nil
}

// getOrCreateClient returns the shared, connection-pooled HTTP client,
// building it on first use. Redirects are capped and re-validated against
// the zero-trust policy to prevent redirect-based SSRF.
func (e *HTTPClientExecutor) getOrCreateClient(cfg *config.Config, ssrf *security.SSRFProtection) *http.Client {
	e.mu.RLock()
	if e.client != nil {
		defer e.mu.RUnlock()
		return e.client
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client
	}

	e.client = &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     100,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxHTTPRedirects {
				return fmt.Errorf("too many redirects (max %d)", cfg.MaxHTTPRedirects)
			}
			return ssrf.ValidateURL(req.URL.String())
		},
	}
	return e.client
}

func (e *HTTPClientExecutor) Validate(node types.Node) error {
	var params HTTPClientParams
	if len(node.Params) > 0 {
		if err := json.Unmarshal(node.Params, &params); err != nil {
			return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
		}
	}
	if params.Method != "" {
		switch strings.ToUpper(params.Method) {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return types.ErrInvalidFieldValue("method", params.Method, "unsupported HTTP method")
		}
	}
	return nil
}
