package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// envelope is Kraken's uniform response wrapper.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// doPublic issues a GET against an unauthenticated endpoint and returns the
// result payload.
func (a *Adapter) doPublic(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	reqURL := a.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return a.do(req)
}

// doPrivate issues a signed POST against an authenticated endpoint. The nonce
// is the current time in milliseconds; Kraken requires it to be strictly
// increasing per key.
func (a *Adapter) doPrivate(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if a.cfg.Credentials.Key == "" || a.cfg.Credentials.Secret == "" {
		return nil, fmt.Errorf("no credentials configured: %w", domain.ErrVenueRejected)
	}

	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	params.Set("nonce", nonce)
	encoded := params.Encode()

	sig, err := sign(path, nonce, encoded, a.cfg.Credentials.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", a.cfg.Credentials.Key)
	req.Header.Set("API-Sign", sig)
	return a.do(req)
}

func (a *Adapter) do(req *http.Request) (json.RawMessage, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, domain.ErrNetworkFailure)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrNetworkFailure)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, truncate(body), domain.ErrVenueRejected)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, domain.ErrVenueRejected)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("api error %s: %w", strings.Join(env.Error, "; "), apiError(env.Error))
	}
	return env.Result, nil
}

// sign produces the API-Sign header: HMAC-SHA512 over path plus
// SHA256(nonce+postdata), keyed with the base64-decoded secret.
func sign(path, nonce, postData, secret string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	inner := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(path))
	mac.Write(inner[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// apiError classifies Kraken's error strings. Service and timeout classes are
// transient; everything else is a rejection.
func apiError(errs []string) error {
	for _, e := range errs {
		if strings.HasPrefix(e, "EService:") || strings.Contains(e, "Timeout") {
			return domain.ErrNetworkFailure
		}
	}
	return domain.ErrVenueRejected
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
