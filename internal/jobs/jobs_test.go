package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthbot/internal/models"
	"healthbot/internal/services"
)

type fakePruner struct {
	collection string
	cutoff     time.Time
	err        error
}

func (p *fakePruner) DeleteBefore(_ context.Context, collection string, cutoff time.Time) (int64, error) {
	p.collection, p.cutoff = collection, cutoff
	return 3, p.err
}

type fakeArchive struct {
	cutoff time.Time
}

func (a *fakeArchive) PurgeArchiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	a.cutoff = cutoff
	return 1, nil
}

func TestRetentionCleanupJob(t *testing.T) {
	now := time.Date(2024, 5, 31, 3, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	archive := &fakeArchive{}

	job := NewRetentionCleanupJob(pruner, archive, 30)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	want := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, models.CollectionChatHistory, pruner.collection)
	assert.Equal(t, want, pruner.cutoff)
	assert.Equal(t, want, archive.cutoff)
}

func TestRetentionCleanupJob_Disabled(t *testing.T) {
	pruner := &fakePruner{}
	require.NoError(t, NewRetentionCleanupJob(pruner, nil, 0).Run(context.Background()))
	assert.Empty(t, pruner.collection)
}

func TestRetentionCleanupJob_StoreError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	archive := &fakeArchive{}
	err := NewRetentionCleanupJob(pruner, archive, 30).Run(context.Background())
	assert.Error(t, err)
	assert.True(t, archive.cutoff.IsZero())
}

type fakeEmbeddingStore struct {
	tasks []services.EmbeddingTask
	fail  map[string]bool
	set   map[string][]float32
}

func (s *fakeEmbeddingStore) MissingEmbeddings(_ context.Context, limit int) ([]services.EmbeddingTask, error) {
	if len(s.tasks) > limit {
		return s.tasks[:limit], nil
	}
	return s.tasks, nil
}

func (s *fakeEmbeddingStore) Embed(_ context.Context, text string) ([]float32, error) {
	if s.fail[text] {
		return nil, errors.New("quota exceeded")
	}
	return []float32{float32(len(text))}, nil
}

func (s *fakeEmbeddingStore) SetEmbedding(_ context.Context, collection, id string, vec []float32) error {
	s.set[collection+"/"+id] = vec
	return nil
}

func TestEmbeddingBackfillJob(t *testing.T) {
	store := &fakeEmbeddingStore{
		tasks: []services.EmbeddingTask{
			{Collection: models.CollectionHealthTips, ID: "tip1", Document: "sleep"},
			{Collection: models.CollectionProducts, ID: "prod1", Document: "broken"},
			{Collection: models.CollectionProducts, ID: "prod2", Document: "tea"},
		},
		fail: map[string]bool{"broken": true},
		set:  map[string][]float32{},
	}

	require.NoError(t, NewEmbeddingBackfillJob(store, 10).Run(context.Background()))

	assert.Equal(t, map[string][]float32{
		"health_tips/tip1": {5},
		"products/prod2":   {3},
	}, store.set)
}

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestJobScheduler(t *testing.T) {
	s, err := NewJobScheduler()
	require.NoError(t, err)

	job := &countingJob{}
	require.NoError(t, s.Register("retention", "0 3 * * *", job))
	assert.Error(t, s.Register("bad", "not a cron", job))

	s.Start()
	defer s.Stop()

	status := s.GetStatus()
	require.Contains(t, status, "retention")
	assert.True(t, status["retention"].Registered)

	require.NoError(t, s.RunNow("retention"))
	assert.EqualValues(t, 1, job.runs.Load())
	assert.Error(t, s.RunNow("missing"))
}
