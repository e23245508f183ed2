package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"healthbot/internal/llm"
	"healthbot/internal/models"
)

// ResearchPlaceholderPrefix starts the findings text of a failed lookup
const ResearchPlaceholderPrefix = "Error retrieving research: "

// ResearchService fans sub-queries out to the search service concurrently.
// Each lookup has its own timeout and a failure only affects its own entry.
type ResearchService struct {
	searcher      llm.Searcher
	timeout       time.Duration
	limiter       *rate.Limiter
	findings      *cache.Cache
	maxConcurrent int
	metrics       *Metrics
}

// NewResearchService creates the research fan-out. ratePerSecond bounds the
// outbound request rate across all users; cacheTTL keeps successful findings
// for repeated sub-queries.
func NewResearchService(searcher llm.Searcher, timeout time.Duration, ratePerSecond float64, cacheTTL time.Duration, maxConcurrent int, metrics *Metrics) *ResearchService {
	burst := int(ratePerSecond * 2)
	if burst < 1 {
		burst = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &ResearchService{
		searcher:      searcher,
		timeout:       timeout,
		limiter:       rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		findings:      cache.New(cacheTTL, cacheTTL*2),
		maxConcurrent: maxConcurrent,
		metrics:       metrics,
	}
}

// Research returns findings for every sub-query. Failed or timed-out lookups
// hold a placeholder string instead of findings.
func (r *ResearchService) Research(ctx context.Context, subQueries []string) models.ResearchFindings {
	findings := make(models.ResearchFindings, len(subQueries))
	if len(subQueries) == 0 {
		return findings
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)

	issued := make(map[string]bool, len(subQueries))
	for _, q := range subQueries {
		if issued[q] {
			continue
		}
		issued[q] = true

		query := q
		g.Go(func() error {
			text := r.lookup(ctx, query)
			mu.Lock()
			findings[query] = text
			mu.Unlock()
			return nil
		})
	}

	// lookups never return errors; failures become placeholders
	_ = g.Wait()

	return findings
}

func (r *ResearchService) lookup(ctx context.Context, query string) string {
	if r.searcher == nil {
		r.metrics.RecordResearchLookup("failed")
		return ResearchPlaceholderPrefix + "research service is not configured"
	}

	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if cached, found := r.findings.Get(key); found {
		r.metrics.RecordResearchLookup("cached")
		return cached.(string)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	if err := r.limiter.Wait(callCtx); err != nil {
		log.Printf("⚠️  [RESEARCH] Rate limiter wait aborted for sub-query (%d chars): %v", len(query), err)
		r.metrics.RecordResearchLookup("failed")
		return ResearchPlaceholderPrefix + describeLookupFailure(llm.KindTimeout)
	}

	text, err := r.searcher.SummarizeQuery(callCtx, query)
	if err != nil {
		kind := llm.KindOf(err)
		log.Printf("⚠️  [RESEARCH] Lookup failed after %v (%s): %v", time.Since(start).Round(time.Millisecond), kind, err)
		r.metrics.RecordResearchLookup("failed")
		return ResearchPlaceholderPrefix + describeLookupFailure(kind)
	}

	r.findings.Set(key, text, cache.DefaultExpiration)
	r.metrics.RecordResearchLookup("ok")
	log.Printf("📚 [RESEARCH] Lookup completed in %v (%d chars)", time.Since(start).Round(time.Millisecond), len(text))
	return text
}

// describeLookupFailure gives the composer a short reason without upstream detail
func describeLookupFailure(kind llm.Kind) string {
	switch kind {
	case llm.KindTimeout:
		return "the research lookup timed out"
	case llm.KindRateLimited:
		return "the research service is rate limited"
	case llm.KindRejected:
		return "the research request was rejected"
	case llm.KindBadResponse:
		return "the research service returned an empty response"
	default:
		return "the research service is unavailable"
	}
}

// IsResearchPlaceholder reports whether findings text is a failure placeholder
func IsResearchPlaceholder(text string) bool {
	return strings.HasPrefix(text, ResearchPlaceholderPrefix)
}
