// Package translation calls a LibreTranslate compatible service for transcript translations.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Translation is one target language's result.
type Translation struct {
	Primary          string   `json:"primary"`
	Alternatives     []string `json:"alternatives,omitempty"`
	DetectedLanguage string   `json:"detectedLanguage,omitempty"`
}

type Client struct {
	base string
	http *http.Client
}

func New(base string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 8
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Translate requests translations of text into every target concurrently, one
// LibreTranslate /translate call per target. An empty source means "auto".
// Any failed target fails the whole call.
func (c *Client) Translate(ctx context.Context, text, source string, targets []string, altLimit int) (map[string]Translation, error) {
	out := make(map[string]Translation, len(targets))
	if c == nil || c.base == "" || len(targets) == 0 || strings.TrimSpace(text) == "" {
		return out, nil
	}

	src := strings.TrimSpace(source)
	if src == "" {
		src = "auto"
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, tgt := range targets {
		g.Go(func() error {
			tr, err := c.translateOne(ctx, text, src, tgt, altLimit)
			if err != nil {
				return err
			}
			mu.Lock()
			out[tgt] = tr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) translateOne(ctx context.Context, text, src, tgt string, altLimit int) (Translation, error) {
	payload := map[string]any{
		"q":      text,
		"source": src,
		"target": tgt,
		"format": "text",
	}
	if altLimit > 0 {
		payload["alternatives"] = altLimit
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Translation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return Translation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Translation{}, fmt.Errorf("translate to %s: %w", tgt, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Translation{}, fmt.Errorf("translation http %d for target %s", resp.StatusCode, tgt)
	}

	var lr struct {
		TranslatedText   string   `json:"translatedText"`
		Alternatives     []string `json:"alternatives"`
		DetectedLanguage struct {
			Language string `json:"language"`
		} `json:"detectedLanguage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Translation{}, fmt.Errorf("decode translation for %s: %w", tgt, err)
	}

	tr := Translation{
		Primary:          strings.TrimSpace(lr.TranslatedText),
		DetectedLanguage: lr.DetectedLanguage.Language,
	}
	for _, a := range lr.Alternatives {
		if s := strings.TrimSpace(a); s != "" {
			tr.Alternatives = append(tr.Alternatives, s)
		}
	}
	return tr, nil
}
