package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// DefaultJDoodleEndpoint is the public JDoodle execute API.
const DefaultJDoodleEndpoint = "https://api.jdoodle.com/v1/execute"

// JDoodleConfig configures the JDoodle backend.
type JDoodleConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Runtimes     Runtimes
	HTTPClient   *http.Client
}

// JDoodleExecutor runs programs through the JDoodle compiler API.
type JDoodleExecutor struct {
	endpoint     string
	clientID     string
	clientSecret string
	runtimes     Runtimes
	httpClient   *http.Client
}

// NewJDoodleExecutor creates a JDoodle backend. Missing credentials are
// reported per request, not here, so the daemon can still start.
func NewJDoodleExecutor(cfg JDoodleConfig) *JDoodleExecutor {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultJDoodleEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Runtimes == nil {
		cfg.Runtimes = DefaultRuntimes()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &JDoodleExecutor{
		endpoint:     cfg.Endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		runtimes:     cfg.Runtimes,
		httpClient:   httpClient,
	}
}

type jdoodleRequest struct {
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type jdoodleResponse struct {
	Output     string      `json:"output"`
	StatusCode int         `json:"statusCode"`
	Memory     numericText `json:"memory"`
	CPUTime    numericText `json:"cpuTime"`
	Error      string      `json:"error"`
}

// Execute posts the program to JDoodle.
func (e *JDoodleExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	rt, err := e.runtimes.Lookup(req.Language)
	if err != nil {
		return nil, err
	}
	if e.clientID == "" || e.clientSecret == "" {
		return nil, ErrCredentialsMissing
	}

	body, err := json.Marshal(jdoodleRequest{
		Script:       req.SourceCode,
		Language:     rt.JDoodleLanguage,
		VersionIndex: rt.VersionIndex,
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jdoodle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out jdoodleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: out.Error}
	}

	return &domain.ExecutionResult{
		Output:         out.Output,
		CPUTimeSeconds: float64(out.CPUTime),
		MemoryKb:       float64(out.Memory),
	}, nil
}

// numericText decodes JDoodle's numbers, which arrive as JSON strings,
// JSON numbers or null depending on the language.
type numericText float64

func (n *numericText) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// Values like "Unknown" are reported for failed compilations.
		*n = 0
		return nil
	}
	*n = numericText(f)
	return nil
}
