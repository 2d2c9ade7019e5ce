// Package pruner talks to an optional remote neural-pruning service
// that compresses context text. It is a best-effort collaborator:
// every failure mode (disabled, unreachable, slow, malformed
// response) falls back to returning the input unchanged rather than
// propagating an error.
package pruner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/memoria-dev/memoria/internal/config"

	. "github.com/memoria-dev/memoria/internal/logging"
)

const healthCacheTTL = 60 * time.Second

// Pruner is a handle to the optional remote compression service.
type Pruner struct {
	cfg    config.PrunerConfig
	client *http.Client

	mu             sync.RWMutex
	lastChecked    time.Time
	lastAvailable  bool
	avgCompression float64
	samples        int
}

// New constructs a Pruner from the resolved config. If a URL override
// is set in the environment, it takes precedence over cfg.URL.
func New(cfg config.PrunerConfig, urlOverride string) *Pruner {
	if urlOverride != "" {
		cfg.URL = urlOverride
	}
	return &Pruner{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
	}
}

type pruneRequest struct {
	Text      string  `json:"text"`
	Threshold float64 `json:"threshold"`
}

type pruneResponse struct {
	Text string `json:"text"`
}

// Prune compresses text via the remote service if enabled and
// available; otherwise it returns text unchanged. Never returns an
// error: every failure mode degrades to the identity transform.
func (p *Pruner) Prune(ctx context.Context, text string) string {
	if p == nil || !p.cfg.Enabled || p.cfg.URL == "" {
		return text
	}

	if !p.isAvailable(ctx) {
		return text
	}

	threshold := p.effectiveThreshold()

	body, err := json.Marshal(pruneRequest{Text: text, Threshold: threshold})
	if err != nil {
		L_debug("pruner: failed to marshal request", "error", err)
		return text
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.cfg.URL+"/prune", bytes.NewReader(body))
	if err != nil {
		L_debug("pruner: failed to build request", "error", err)
		return text
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		L_debug("pruner: request failed", "error", err)
		return text
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		L_debug("pruner: non-200 response", "status", resp.StatusCode, "body", string(respBody))
		return text
	}

	var result pruneResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		L_debug("pruner: failed to decode response", "error", err)
		return text
	}
	if result.Text == "" {
		return text
	}

	p.recordCompression(len(text), len(result.Text))
	return result.Text
}

// isAvailable performs (or reuses a cached) health probe. The probe
// is refreshed at most once per healthCacheTTL, matching the
// OllamaProvider availability-caching pattern.
func (p *Pruner) isAvailable(ctx context.Context) bool {
	p.mu.RLock()
	fresh := time.Since(p.lastChecked) < healthCacheTTL
	available := p.lastAvailable
	p.mu.RUnlock()
	if fresh {
		return available
	}

	healthCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, p.cfg.URL+"/health", nil)
	ok := false
	if err == nil {
		resp, reqErr := p.client.Do(req)
		if reqErr == nil {
			ok = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		} else {
			L_debug("pruner: health check failed", "error", reqErr)
		}
	}

	p.mu.Lock()
	p.lastChecked = time.Now()
	p.lastAvailable = ok
	p.mu.Unlock()

	return ok
}

// effectiveThreshold returns the configured threshold, or — when
// adaptive thresholding is enabled — a threshold nudged toward the
// running average compression ratio observed so far.
func (p *Pruner) effectiveThreshold() float64 {
	if !p.cfg.AdaptiveThreshold {
		return p.cfg.Threshold
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.samples == 0 {
		return p.cfg.Threshold
	}
	return clamp01((p.cfg.Threshold + p.avgCompression) / 2)
}

func (p *Pruner) recordCompression(originalLen, prunedLen int) {
	if originalLen == 0 {
		return
	}
	ratio := 1 - float64(prunedLen)/float64(originalLen)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples++
	p.avgCompression += (ratio - p.avgCompression) / float64(p.samples)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
