package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"healthbot/internal/models"
)

func ignoreCacheJanitor() goleak.Option {
	return goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run")
}

func TestResearchService_AllSucceed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreCacheJanitor())

	searcher := &fakeSearcher{}
	svc := NewResearchService(searcher, time.Second, 100, time.Minute, 4, nil)

	queries := []string{"q1", "q2", "q3"}
	findings := svc.Research(context.Background(), queries)

	require.Len(t, findings, 3)
	for _, q := range queries {
		assert.Equal(t, "Findings for "+q, findings[q])
	}
}

func TestResearchService_PartialFailureIsolation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreCacheJanitor())

	searcher := &fakeSearcher{errs: map[string]error{"bad": errUpstream}}
	svc := NewResearchService(searcher, time.Second, 100, time.Minute, 4, nil)

	findings := svc.Research(context.Background(), []string{"good1", "bad", "good2"})

	require.Len(t, findings, 3)
	assert.Equal(t, "Findings for good1", findings["good1"])
	assert.Equal(t, "Findings for good2", findings["good2"])
	assert.True(t, IsResearchPlaceholder(findings["bad"]))
	assert.NotContains(t, findings["bad"], "service unavailable", "upstream error text should not leak")
}

func TestResearchService_SlowLookupTimesOutAlone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), ignoreCacheJanitor())

	searcher := &fakeSearcher{delays: map[string]time.Duration{"slow": 5 * time.Second}}
	svc := NewResearchService(searcher, 50*time.Millisecond, 100, time.Minute, 4, nil)

	start := time.Now()
	findings := svc.Research(context.Background(), []string{"slow", "fast"})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "Findings for fast", findings["fast"])
	assert.Equal(t, ResearchPlaceholderPrefix+"the research lookup timed out", findings["slow"])
}

func TestResearchService_CachesSuccessfulFindings(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{"flaky": errUpstream}}
	svc := NewResearchService(searcher, time.Second, 100, time.Minute, 4, nil)

	svc.Research(context.Background(), []string{"Melatonin safety", "flaky"})
	svc.Research(context.Background(), []string{"  melatonin   SAFETY ", "flaky"})

	// second round: cached hit for the normalized query, failure is retried
	assert.EqualValues(t, 3, searcher.calls.Load())
}

func TestResearchService_EmptyInput(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewResearchService(searcher, time.Second, 100, time.Minute, 4, nil)

	findings := svc.Research(context.Background(), nil)

	assert.Empty(t, findings)
	assert.NotNil(t, findings)
	assert.Zero(t, searcher.calls.Load())
}

func TestResearchService_NilSearcher(t *testing.T) {
	svc := NewResearchService(nil, time.Second, 100, time.Minute, 4, nil)

	findings := svc.Research(context.Background(), []string{"q"})

	require.Len(t, findings, 1)
	assert.True(t, IsResearchPlaceholder(findings["q"]))
}

func TestResearchService_RecordsMetrics(t *testing.T) {
	metrics := InitMetrics(prometheus.NewRegistry())
	searcher := &fakeSearcher{errs: map[string]error{"bad": errUpstream}}
	svc := NewResearchService(searcher, time.Second, 100, time.Minute, 4, metrics)

	svc.Research(context.Background(), []string{"ok", "bad"})
	svc.Research(context.Background(), []string{"ok"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchLookups.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchLookups.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchLookups.WithLabelValues("cached")))
}

func TestResearchFailure(t *testing.T) {
	assert.Equal(t, models.FailureNone, researchFailure(models.ResearchFindings{}))
	assert.Equal(t, models.FailureNone, researchFailure(models.ResearchFindings{
		"a": "real", "b": ResearchPlaceholderPrefix + "x",
	}))
	assert.Equal(t, models.FailureUpstream, researchFailure(models.ResearchFindings{
		"a": ResearchPlaceholderPrefix + "x",
	}))
}
