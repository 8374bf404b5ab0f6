package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// ErrHTTPRequest — ошибка выполнения HTTP-запроса.
var ErrHTTPRequest = errors.New("http request failed")

// HTTPTask выполняет HTTP-запрос на основе входа.
//
// Вход:
//   - method (string): HTTP-метод. Default: GET
//   - url (string): URL для запроса (обязательно)
//   - headers (map[string]any): HTTP-заголовки
//   - body (any): тело запроса (сериализуется в JSON)
//   - timeout_sec (number): таймаут запроса в секундах. Default: 30
//
// Выход:
//   - status_code (int): HTTP-код ответа
//   - body (any): тело ответа (JSON, если распарсилось, иначе строка)
func HTTPTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	method := getString(input, "method", http.MethodGet)
	url := getString(input, "url", "")

	timeout := defaultHTTPTimeout
	if sec, ok := getNumber(input, "timeout_sec"); ok && sec > 0 {
		timeout = time.Duration(sec * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body, ok := input["body"]; ok && body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	if headers, ok := input["headers"].(map[string]any); ok {
		for name, value := range headers {
			req.Header.Set(name, fmt.Sprintf("%v", value))
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	output := map[string]any{"status_code": resp.StatusCode}
	var parsed any
	if json.Unmarshal(respBody, &parsed) == nil {
		output["body"] = parsed
	} else {
		output["body"] = string(respBody)
	}

	if resp.StatusCode >= 400 {
		return output, fmt.Errorf("%w: status %d", ErrHTTPRequest, resp.StatusCode)
	}
	return output, nil
}

// validateHTTPInput требует непустой url.
func validateHTTPInput(input map[string]any) error {
	if getString(input, "url", "") == "" {
		return errors.New("url is required")
	}
	return nil
}

// getString извлекает строковое значение с дефолтом.
func getString(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// getNumber извлекает числовое значение (float64 или int).
func getNumber(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
