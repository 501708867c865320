// Package joke provides the dashboard's best-effort joke of the moment.
package joke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "famcal/internal/log"
)

// Fallback is shown whenever no joke could be fetched.
const Fallback = "Why don't scientists trust atoms? Because they make up everything!"

// DefaultTimeout bounds a single joke lookup.
const DefaultTimeout = 5 * time.Second

// Teller produces a joke.
type Teller interface {
	Joke(ctx context.Context) (string, error)
}

// HTTPTeller fetches jokes shaped like {"setup": "...", "punchline": "..."}.
type HTTPTeller struct {
	url    string
	client *http.Client
}

// NewHTTPTeller returns a Teller for the given endpoint.
func NewHTTPTeller(url string, timeout time.Duration) *HTTPTeller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTeller{url: url, client: &http.Client{Timeout: timeout}}
}

type jokeResponse struct {
	Setup     string `json:"setup"`
	Punchline string `json:"punchline"`
}

func (t *HTTPTeller) Joke(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("joke api: unexpected status %s", resp.Status)
	}

	var jr jokeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&jr); err != nil {
		return "", fmt.Errorf("joke api: decode: %w", err)
	}

	joke := strings.TrimSpace(strings.TrimSpace(jr.Setup) + " " + strings.TrimSpace(jr.Punchline))
	if joke == "" {
		return "", errors.New("joke api: empty joke")
	}
	return joke, nil
}

// OrFallback asks t for a joke and returns Fallback on any failure,
// including a nil Teller.
func OrFallback(ctx context.Context, t Teller) string {
	if t == nil {
		return Fallback
	}
	joke, err := t.Joke(ctx)
	if err != nil {
		appLog.Debug("joke lookup failed; using fallback", "err", err)
		return Fallback
	}
	return joke
}
