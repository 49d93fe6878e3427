package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

const (
	httpDefaultTimeout = 30 * time.Second
	httpBodyLimit      = 10 << 20
)

// Ключи конфигурации HTTP шага.
const (
	keyMethod          = "method"
	keyURL             = "url"
	keyHeaders         = "headers"
	keyBody            = "body"
	keyFollowRedirects = "follow_redirects"
	keyValidateSSL     = "validate_ssl"
	keyTimeoutSec      = "timeout_sec"
)

var httpMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
}

// HTTPStep — шаг HTTP запроса к внешнему API.
//
// Если body не задан, а метод передаёт тело, отправляется вход шага в JSON.
// Ответ со статусом >= 400 завершает шаг ошибкой "HTTP <code>: <status>".
//
// Конфигурация:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/orders",
//	    "headers": {"Authorization": "Bearer {{ .Vars.token }}"},
//	    "body": {"order": "{{ .Input.id }}"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 30
//	}
//
// Outputs: {"status_code": 200, "headers": {...}, "body": <JSON или строка>}
type HTTPStep struct {
	// transport подменяет сетевой слой (тесты, прокси).
	transport http.RoundTripper

	once     sync.Once
	secure   *http.Transport
	insecure *http.Transport
}

// NewHTTPStep создаёт новый HTTPStep.
func NewHTTPStep() *HTTPStep {
	return &HTTPStep{}
}

// Kind возвращает ключ шага.
func (s *HTTPStep) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeHTTP}
}

// Validate проверяет url, метод и таймаут.
func (s *HTTPStep) Validate(config map[string]any) []string {
	var problems []string
	if _, err := readHTTPCall(config); err != nil {
		problems = append(problems, strings.TrimPrefix(err.Error(), ErrInvalidConfig.Error()+": "))
	}
	if GetConfigInt(config, keyTimeoutSec) < 0 {
		problems = append(problems, "timeout_sec must not be negative")
	}
	return problems
}

// DefaultConfig возвращает GET-запрос без url.
func (s *HTTPStep) DefaultConfig() map[string]any {
	return map[string]any{
		keyMethod:          http.MethodGet,
		keyURL:             "",
		keyHeaders:         map[string]any{},
		keyFollowRedirects: true,
		keyValidateSSL:     true,
		keyTimeoutSec:      30,
	}
}

// Execute выполняет HTTP запрос.
func (s *HTTPStep) Execute(ctx context.Context, ec *ExecContext) Result {
	call, err := readHTTPCall(ec.Config)
	if err != nil {
		return FailErr(err)
	}
	if call.body == nil && call.carriesBody() && ec.Input != nil {
		call.body = ec.Input
	}

	req, err := call.request(ctx)
	if err != nil {
		return FailErr(fmt.Errorf("build request: %w", err))
	}

	resp, err := s.client(call).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FailErr(fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err()))
		}
		return FailErr(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	outputs, err := responseOutputs(resp)
	if err != nil {
		return FailErr(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return FailErr(&StatusError{Code: resp.StatusCode, Body: outputs["body"]})
	}
	return Ok(outputs)
}

// client собирает http.Client под параметры вызова.
// Транспорты общие для всех runs, чтобы соединения переиспользовались.
func (s *HTTPStep) client(call *httpCall) *http.Client {
	c := &http.Client{Timeout: call.timeout, Transport: s.roundTripper(call.verifyTLS)}
	if !call.followRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

func (s *HTTPStep) roundTripper(verifyTLS bool) http.RoundTripper {
	if s.transport != nil {
		return s.transport
	}

	s.once.Do(func() {
		base := http.DefaultTransport.(*http.Transport)
		s.secure = base.Clone()
		s.insecure = base.Clone()
		s.insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	})

	if verifyTLS {
		return s.secure
	}
	return s.insecure
}

// httpCall — отрендеренная конфигурация одного запроса.
type httpCall struct {
	method          string
	url             string
	headers         map[string]string
	body            any
	followRedirects bool
	verifyTLS       bool
	timeout         time.Duration
}

func readHTTPCall(config map[string]any) (*httpCall, error) {
	target := strings.TrimSpace(GetConfigString(config, keyURL))
	switch {
	case target == "":
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	case !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://"):
		return nil, fmt.Errorf("%w: url must start with http:// or https://", ErrInvalidConfig)
	}

	method := strings.ToUpper(GetConfigString(config, keyMethod))
	if method == "" {
		method = http.MethodGet
	}
	if !slices.Contains(httpMethods, method) {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidConfig, method)
	}

	call := &httpCall{
		method:          method,
		url:             target,
		headers:         GetConfigMapString(config, keyHeaders),
		body:            config[keyBody],
		followRedirects: GetConfigBool(config, keyFollowRedirects, true),
		verifyTLS:       GetConfigBool(config, keyValidateSSL, true),
		timeout:         httpDefaultTimeout,
	}
	if sec := GetConfigInt(config, keyTimeoutSec); sec > 0 {
		call.timeout = time.Duration(sec) * time.Second
	}
	// Шаблон, отрендеренный в пустую строку, означает "без тела"
	if s, ok := call.body.(string); ok && s == "" {
		call.body = nil
	}
	return call, nil
}

func (c *httpCall) carriesBody() bool {
	return c.method == http.MethodPost || c.method == http.MethodPut || c.method == http.MethodPatch
}

func (c *httpCall) request(ctx context.Context) (*http.Request, error) {
	var payload io.Reader
	if c.body != nil {
		raw, err := encodeBody(c.body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, payload)
	if err != nil {
		return nil, err
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return json.Marshal(body)
}

// responseOutputs читает ответ (не больше httpBodyLimit) в outputs шага.
// JSON тело разбирается, остальное остаётся строкой.
func responseOutputs(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, httpBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any = string(raw)
	if isJSONMedia(resp.Header.Get("Content-Type")) {
		var decoded any
		if json.Unmarshal(raw, &decoded) == nil {
			body = decoded
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[name] = strings.Join(values, ", ")
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}

func isJSONMedia(contentType string) bool {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return media == "application/json" || strings.HasSuffix(media, "+json")
}

// StatusError — ответ сервера со статусом >= 400.
type StatusError struct {
	Code int
	Body any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}
