// Package orchestrator implements the Tiered Fetch Orchestrator (§4.1):
// the public fetch(request) -> Result | Error entrypoint that selects a
// tier sequence, drives per-attempt rendering/extraction/validation, and
// folds outcomes back into the proxy, pattern, quirks and risk subsystems.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uzzalhcse/crawlify/internal/domainutil"
	"github.com/uzzalhcse/crawlify/internal/extraction"
	"github.com/uzzalhcse/crawlify/internal/fetcherr"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/internal/pattern"
	"github.com/uzzalhcse/crawlify/internal/proxy"
	"github.com/uzzalhcse/crawlify/internal/quirks"
	"github.com/uzzalhcse/crawlify/internal/rendering"
	"github.com/uzzalhcse/crawlify/internal/tracer"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// estimatedMinLatency is a per-tier floor used by the per-attempt budget
// check (§4.1 step 1): a tier is skipped outright once remaining budget
// can't possibly cover it.
var estimatedMinLatency = map[models.Tier]time.Duration{
	models.TierIntelligence: 200 * time.Millisecond,
	models.TierLightweight:  800 * time.Millisecond,
	models.TierPlaywright:   2 * time.Second,
}

// ResultCache is the narrow slice of the tenant-namespaced KeyValueStore
// capability (§6) the orchestrator needs for its short-TTL fetch result
// cache: a plain get/set-with-expiry over (namespace, key).
type ResultCache interface {
	Get(ctx context.Context, namespace, key string, dest interface{}) error
	SetWithTTL(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
}

// Orchestrator composes every collaborator named in §4.1.
type Orchestrator struct {
	backends  *rendering.Registry
	extractor *extraction.Extractor
	proxies   *proxy.Manager
	patterns  *pattern.Registry
	health    *pattern.HealthMonitor
	quirksReg *quirks.Registry
	risk      *proxy.RiskClassifier
	recorder  *tracer.Recorder

	cache    ResultCache
	cacheTTL time.Duration

	perTierAttemptTimeout time.Duration
	selectorWaitTimeout   time.Duration
}

func New(
	backends *rendering.Registry,
	extractor *extraction.Extractor,
	proxies *proxy.Manager,
	patterns *pattern.Registry,
	health *pattern.HealthMonitor,
	quirksReg *quirks.Registry,
	risk *proxy.RiskClassifier,
	recorder *tracer.Recorder,
	cache ResultCache,
	cacheTTL time.Duration,
	perTierAttemptTimeout time.Duration,
	selectorWaitTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		backends:              backends,
		extractor:              extractor,
		proxies:                proxies,
		patterns:               patterns,
		health:                 health,
		quirksReg:              quirksReg,
		risk:                   risk,
		recorder:               recorder,
		cache:                  cache,
		cacheTTL:               cacheTTL,
		perTierAttemptTimeout:  perTierAttemptTimeout,
		selectorWaitTimeout:    selectorWaitTimeout,
	}
}

// cacheNamespace defaults an empty tenant plan to a shared namespace so
// unauthenticated/plan-less requests still get cache coverage.
func cacheNamespace(plan string) string {
	if plan == "" {
		return "default"
	}
	return plan
}

// Fetch is the public contract: fetch(request) -> Result | Error.
func (o *Orchestrator) Fetch(ctx context.Context, req models.Request) (*models.Result, *fetcherr.FetchError) {
	if req.Domain == "" {
		req.Domain = domainutil.FromURL(req.URL)
	}

	if o.cache != nil && o.cacheTTL > 0 {
		var cached models.Result
		if err := o.cache.Get(ctx, cacheNamespace(req.Plan), req.URL, &cached); err == nil {
			cached.FellBack = false
			return &cached, nil
		}
	}

	trace := &models.DecisionTrace{
		ID:        uuid.NewString(),
		Domain:    req.Domain,
		URL:       req.URL,
		CreatedAt: time.Now(),
	}

	tiers := o.selectTierSequence(req)

	remaining := time.Duration(0)
	unbounded := req.Budget.MaxLatencyMs == nil
	if !unbounded {
		remaining = time.Duration(*req.Budget.MaxLatencyMs) * time.Millisecond
	}

	var lastErr *fetcherr.FetchError

	for _, tier := range tiers {
		if !unbounded {
			if remaining <= estimatedMinLatency[tier] {
				trace.AddAttempt(models.Attempt{Tier: tier, StartedAt: time.Now(), Outcome: models.OutcomeSkippedByBudget})
				continue
			}
		}

		attemptStart := time.Now()
		attemptTimeout := o.perTierAttemptTimeout
		if !unbounded && remaining < attemptTimeout {
			attemptTimeout = remaining
		}

		result, attempt, ferr := o.attemptTier(ctx, req, tier, attemptTimeout, trace)
		trace.AddAttempt(attempt)

		if !unbounded {
			remaining -= time.Since(attemptStart)
		}

		if ferr == nil {
			trace.Seal(true, "succeeded at tier "+string(tier))
			result.DecisionTrace = trace
			result.FellBack = tier != tiers[0]
			o.maybeRecord(trace, true, req.Domain)
			o.maybeCache(ctx, req, result)
			return result, nil
		}

		lastErr = ferr
		if ferr.Category.NotRetryableAcrossTiers() || !ferr.Retryable {
			break
		}
	}

	if lastErr == nil {
		lastErr = fetcherr.New(fetcherr.CategoryInternal, fetcherr.CodeInternalError, "no tiers attempted", false)
	}
	trace.Seal(false, lastErr.Error())
	o.maybeRecord(trace, false, req.Domain)
	return nil, lastErr
}

// maybeCache stores a successful result under the tenant's cache namespace,
// logging rather than failing the request on a cache-write error.
func (o *Orchestrator) maybeCache(ctx context.Context, req models.Request, result *models.Result) {
	if o.cache == nil || o.cacheTTL <= 0 {
		return
	}
	if err := o.cache.SetWithTTL(ctx, cacheNamespace(req.Plan), req.URL, result, o.cacheTTL); err != nil {
		logger.Warn("failed to cache fetch result", zap.Error(err))
	}
}

func (o *Orchestrator) maybeRecord(trace *models.DecisionTrace, success bool, domain string) {
	if o.recorder == nil || !o.recorder.ShouldRecord(domain, success) {
		return
	}
	if err := o.recorder.Record(trace); err != nil {
		logger.Warn("failed to persist decision trace", zap.Error(err))
	}
}

// attemptTier runs one tier's full render -> extract -> validate cycle and
// reports the outcome to every collaborator that needs to learn from it.
func (o *Orchestrator) attemptTier(ctx context.Context, req models.Request, tier models.Tier, timeout time.Duration, trace *models.DecisionTrace) (*models.Result, models.Attempt, *fetcherr.FetchError) {
	started := time.Now()
	attempt := models.Attempt{Tier: tier, StartedAt: started}

	backend := o.backends.Get(tier)
	if backend == nil {
		ferr := fetcherr.New(fetcherr.CategoryConfig, fetcherr.CodeConfigUnknownTool, "no backend registered for tier "+string(tier), false)
		attempt.Outcome = models.OutcomeTransportError
		attempt.DurationMs = time.Since(started).Milliseconds()
		ref := errRef(ferr)
		attempt.Error = &ref
		return nil, attempt, ferr
	}

	assignment, passignErr := o.proxies.GetProxy(proxy.GetProxyRequest{
		Domain:     req.Domain,
		TenantPlan: req.Plan,
	})
	var assignedProxy *models.Proxy
	if passignErr == nil {
		assignedProxy = assignment.Proxy
		attempt.ProxyID = assignedProxy.ID
	}

	siteQuirks := o.quirksReg.Get(req.Domain)
	headers, stealth := quirks.ApplyToFetchOptions(siteQuirks, req.Options.Headers)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rendered, err := backend.Render(ctxWithTimeout, req.URL, rendering.RenderOptions{
		Proxy:           assignedProxy,
		Headers:         headers,
		Timeout:         timeout,
		Cookies:         req.Options.Cookies,
		WaitForSelector: req.Options.WaitForSelector,
		SelectorTimeout: o.selectorWaitTimeout,
		Stealth:         stealth,
	})

	attempt.DurationMs = time.Since(started).Milliseconds()

	if err != nil {
		outcome := models.OutcomeTransportError
		if ctxWithTimeout.Err() == context.DeadlineExceeded {
			outcome = models.OutcomeTimeout
		}
		attempt.Outcome = outcome

		if assignedProxy != nil {
			reason := proxy.FailureTransport
			if outcome == models.OutcomeTimeout {
				reason = proxy.FailureTimeout
			}
			o.proxies.ReportFailure(assignedProxy.ID, req.Domain, reason)
		}

		ferr := fetcherr.Wrap(fetcherr.CategoryNetwork, fetcherr.CodeNetworkTimeout, "tier render failed", true, err,
			fetcherr.RecommendedAction{Action: fetcherr.ActionRetry})
		ref := errRef(ferr)
		attempt.Error = &ref
		return nil, attempt, ferr
	}

	attempt.NetworkStats = statsFrom(rendered)

	if o.risk != nil {
		o.risk.ObserveStatus(req.Domain, rendered.Status, rendered.Headers)
	}
	o.quirksReg.Learn(quirks.Observation{
		Domain:     req.Domain,
		StatusCode: rendered.Status,
		BodySample: firstN(rendered.Body, 4000),
	})

	if rendered.Status == 404 || rendered.Status == 410 {
		attempt.Outcome = models.OutcomeValidationFailed
		ferr := fetcherr.New(fetcherr.CategoryHTTP, fetcherr.CodeHTTPNotFound, "resource not found", false)
		ref := errRef(ferr)
		attempt.Error = &ref
		if assignedProxy != nil {
			o.proxies.ReportSuccess(assignedProxy.ID, req.Domain, float64(attempt.DurationMs))
		}
		return nil, attempt, ferr
	}

	out, extractErr := o.extractor.Extract(rendered.Body, rendered.FinalURL)
	if extractErr != nil {
		attempt.Outcome = models.OutcomeValidationFailed
		ferr := fetcherr.Wrap(fetcherr.CategoryContent, fetcherr.CodeContentExtractionFailed, "extraction failed", true, extractErr)
		ref := errRef(ferr)
		attempt.Error = &ref
		return nil, attempt, ferr
	}
	recordTitleAttempts(trace, out.Attempts)

	verdict := extraction.Validate(out, rendered.Status, req.URL)
	if !verdict.Valid {
		attempt.Outcome = models.OutcomeValidationFailed
		ferr := fetcherr.New(fetcherr.CategoryValidation, fetcherr.CodeValidationIncompleteRender, "validation failed: "+joinReasons(verdict.Reasons), verdict.Retryable)
		ref := errRef(ferr)
		attempt.Error = &ref
		if assignedProxy != nil {
			o.proxies.ReportFailure(assignedProxy.ID, req.Domain, proxy.FailureChallenge)
		}
		return nil, attempt, ferr
	}

	attempt.Outcome = models.OutcomeSuccess
	if assignedProxy != nil {
		o.proxies.ReportSuccess(assignedProxy.ID, req.Domain, float64(attempt.DurationMs))
	}

	p := o.patterns.Record(models.Observation{
		Domain:   req.Domain,
		URL:      req.URL,
		Endpoint: rendered.FinalURL,
		Method:   "GET",
		Tier:     tier,
	})
	if o.health != nil && p != nil {
		o.health.RecordOutcome(p, true)
	}

	return &models.Result{
		FinalURL:    rendered.FinalURL,
		Title:       out.Title,
		TitleSource: out.TitleSource,
		Text:        out.Text,
		Markdown:    out.Markdown,
		Tables:      out.Tables,
		Links:       out.Links,
		TierUsed:   tier,
		Confidence: out.Confidence,
	}, attempt, nil
}

func recordTitleAttempts(trace *models.DecisionTrace, attempts []extraction.TitleAttempt) {
	for _, a := range attempts {
		trace.AddTitleAttempt(models.TitleAttempt{
			Source:     a.Source,
			Value:      a.Value,
			Confidence: a.Source.Confidence(),
			Selected:   a.Selected,
		})
	}
}

func statsFrom(r *rendering.RenderResult) models.NetworkStats {
	if r.NetworkLog != nil {
		return *r.NetworkLog
	}
	return models.NetworkStats{StatusCode: r.Status}
}

func errRef(e *fetcherr.FetchError) models.FetchErrorRef {
	cat, code := e.Ref()
	return models.FetchErrorRef{Category: cat, Code: code}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
