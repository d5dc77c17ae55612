package rendering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
	"go.uber.org/zap"
)

// IntelligenceBackend is the cheapest tier: a single static HTTP fetch with
// no JS execution at all. Content Extraction runs directly against the
// returned HTML via goquery.
type IntelligenceBackend struct {
	client *fasthttp.Client
}

// NewIntelligenceBackend builds the static-fetch backend. A fresh
// fasthttp.Client is used per proxy at render time since fasthttp pins its
// dialer at client-construction time; Render below swaps the Dial func for
// proxied requests.
func NewIntelligenceBackend() *IntelligenceBackend {
	return &IntelligenceBackend{
		client: &fasthttp.Client{
			MaxConnsPerHost:     512,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

func (b *IntelligenceBackend) Tier() models.Tier { return models.TierIntelligence }

func (b *IntelligenceBackend) Render(ctx context.Context, url string, opts RenderOptions) (*RenderResult, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Cookies != "" {
		req.Header.Set("Cookie", opts.Cookies)
	}
	if req.Header.Peek("User-Agent") == nil {
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; crawlify-fetch/1.0)")
	}

	client := b.client
	if opts.Proxy != nil {
		client = &fasthttp.Client{
			MaxConnsPerHost: 64,
			Dial:            fasthttpproxy.FasthttpHTTPDialer(strings.TrimPrefix(opts.Proxy.URL, "http://")),
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	err := client.DoDeadline(req, resp, deadline)
	if err != nil {
		logger.Debug("intelligence tier fetch failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("intelligence fetch: %w", err)
	}

	headers := make(map[string][]string)
	resp.Header.VisitAll(func(key, value []byte) {
		k := string(key)
		headers[k] = append(headers[k], string(value))
	})

	finalURL := url
	if loc := resp.Header.Peek("Location"); len(loc) > 0 && resp.StatusCode() >= 300 && resp.StatusCode() < 400 {
		finalURL = string(loc)
	}

	body := resp.Body()
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)

	return &RenderResult{
		FinalURL: finalURL,
		Status:   resp.StatusCode(),
		Headers:  headers,
		Body:     string(bodyCopy),
		NetworkLog: &models.NetworkStats{
			StatusCode: resp.StatusCode(),
			BytesIn:    int64(len(bodyCopy)),
		},
	}, nil
}
