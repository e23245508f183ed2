package services

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"healthbot/internal/llm"
	"healthbot/internal/logging"
	"healthbot/internal/models"
)

// Pipeline stage names used in logs and metrics
const (
	StageDecompose = "decompose"
	StageResearch  = "research"
	StageRetrieve  = "retrieve"
	StageCompose   = "compose"
	StageHistory   = "history"
)

// Decomposer analyses a raw message
type Decomposer interface {
	Decompose(ctx context.Context, query string) models.DecompositionResult
}

// Researcher runs the research fan-out
type Researcher interface {
	Research(ctx context.Context, subQueries []string) models.ResearchFindings
}

// Retriever gathers local knowledge for a message
type Retriever interface {
	Retrieve(ctx context.Context, query string) models.RetrievedContext
}

// Composer produces the final answer
type Composer interface {
	Compose(ctx context.Context, req models.ComposeRequest) models.ComposeResult
}

// AssistantDeps are the collaborators of the HealthAssistant
type AssistantDeps struct {
	Decomposer    Decomposer
	Researcher    Researcher
	Retriever     Retriever
	Composer      Composer
	Conversations ConversationStore
	Recorder      TranscriptRecorder // optional
	Metrics       *Metrics           // optional
}

// AssistantOptions tune the orchestrator
type AssistantOptions struct {
	MaxHistory    int
	FailLoud      bool
	RecordTimeout time.Duration
}

// HealthAssistant sequences the pipeline for one incoming message and
// contains every failure, so callers always receive reply text
type HealthAssistant struct {
	deps          AssistantDeps
	maxHistory    int
	failLoud      bool
	recordTimeout time.Duration

	pending sync.WaitGroup
}

// NewHealthAssistant creates the orchestrator
func NewHealthAssistant(deps AssistantDeps, opts AssistantOptions) *HealthAssistant {
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 10 * time.Second
	}
	return &HealthAssistant{
		deps:          deps,
		maxHistory:    opts.MaxHistory,
		failLoud:      opts.FailLoud,
		recordTimeout: opts.RecordTimeout,
	}
}

// HandleMessage runs decomposition, research and retrieval, composition and
// the history update for one message. It never fails: the worst case is the
// fixed default response.
func (a *HealthAssistant) HandleMessage(ctx context.Context, channel models.Channel, userID, message string) (reply string) {
	start := time.Now()
	logger := logging.WithUser(userID, string(channel))
	a.deps.Metrics.RecordMessage(channel)

	defer func() {
		if r := recover(); r != nil {
			if a.failLoud {
				panic(r)
			}
			logger.Error("pipeline panic recovered", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			reply = models.DefaultResponse
			a.appendExchange(ctx, logger, userID, message, reply)
		}
		a.deps.Metrics.RecordPipelineLatency(time.Since(start).Seconds())
	}()

	logger.Info("message received", "length", len(message))

	history := a.history(ctx, logger, userID)

	// RECEIVED -> DECOMPOSED
	stageStart := time.Now()
	decomposition := a.deps.Decomposer.Decompose(ctx, message)
	a.finishStage(logger, StageDecompose, stageStart, decomposition.Failure,
		"needs_research", decomposition.NeedsResearch, "sub_queries", len(decomposition.SubQueries))

	// Research and retrieval are independent; composition waits for both
	var (
		findings  = models.ResearchFindings{}
		retrieved models.RetrievedContext
	)
	var wg sync.WaitGroup
	panics := make(chan any, 2)

	if decomposition.ShouldResearch() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer forwardPanic(panics)
			researchStart := time.Now()
			findings = a.deps.Researcher.Research(ctx, decomposition.SubQueries)
			a.finishStage(logger, StageResearch, researchStart, researchFailure(findings), "lookups", len(findings))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer forwardPanic(panics)
		retrieveStart := time.Now()
		retrieved = a.deps.Retriever.Retrieve(ctx, message)
		a.finishStage(logger, StageRetrieve, retrieveStart, retrieved.Failure, "snippets", len(retrieved.Snippets))
	}()

	wg.Wait()
	close(panics)
	if p, ok := <-panics; ok {
		panic(p)
	}

	// COMPOSING
	stageStart = time.Now()
	result := a.deps.Composer.Compose(ctx, models.ComposeRequest{
		Query:      message,
		SubQueries: decomposition.SubQueries,
		Findings:   findings,
		Context:    retrieved,
		History:    history,
	})
	a.finishStage(logger, StageCompose, stageStart, result.Failure, "length", len(result.Text))

	reply = result.Text
	if result.Fallback() || reply == "" {
		reply = models.DefaultResponse
	}

	// UPDATED
	a.appendExchange(ctx, logger, userID, message, reply)

	if !result.Fallback() {
		a.record(models.ChatTranscript{
			UserID:    userID,
			Channel:   channel,
			Message:   message,
			Response:  reply,
			CreatedAt: time.Now().UTC(),
		}, logger)
	}

	logger.Info("message handled", "duration_ms", time.Since(start).Milliseconds(), "fallback", result.Fallback())
	return reply
}

// GetRecentHistory returns the user's newest turns, oldest first. A
// non-positive limit returns up to MaxHistory turns.
func (a *HealthAssistant) GetRecentHistory(ctx context.Context, userID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = a.maxHistory
	}
	return a.deps.Conversations.Recent(ctx, userID, limit)
}

// Close waits for pending transcript writes, or until ctx is done
func (a *HealthAssistant) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending transcript writes not finished: %w", ctx.Err())
	}
}

func (a *HealthAssistant) history(ctx context.Context, logger *slog.Logger, userID string) []models.Turn {
	turns, err := a.deps.Conversations.Recent(ctx, userID, a.maxHistory)
	if err != nil {
		logging.WithStage(logger, StageHistory).Warn("history unavailable", "error", err)
		return nil
	}
	return turns
}

// appendExchange stores the user turn and the reply as one atomic append
func (a *HealthAssistant) appendExchange(ctx context.Context, logger *slog.Logger, userID, message, reply string) {
	defer func() {
		if r := recover(); r != nil {
			if a.failLoud {
				panic(r)
			}
			logger.Error("history append panic recovered", "panic", fmt.Sprint(r))
		}
	}()

	err := a.deps.Conversations.Append(ctx, userID,
		models.NewTurn(models.RoleUser, message),
		models.NewTurn(models.RoleAssistant, reply),
	)
	if err != nil {
		logging.WithStage(logger, StageHistory).Warn("history append failed", "error", err)
	}
}

// record archives the exchange without delaying the reply
func (a *HealthAssistant) record(t models.ChatTranscript, logger *slog.Logger) {
	if a.deps.Recorder == nil {
		return
	}

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ [ASSISTANT] Transcript recording panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.recordTimeout)
		defer cancel()

		if err := a.deps.Recorder.RecordChat(ctx, t); err != nil {
			logger.Warn("transcript not recorded", "error", err)
		}
	}()
}

func (a *HealthAssistant) finishStage(logger *slog.Logger, stage string, start time.Time, failure models.FailureKind, attrs ...any) {
	elapsed := time.Since(start)
	a.deps.Metrics.RecordStage(stage, elapsed.Seconds(), failure)

	attrs = append(attrs, "duration_ms", elapsed.Milliseconds())
	stageLogger := logging.WithStage(logger, stage)
	if failure != models.FailureNone {
		stageLogger.Warn("stage fell back", append(attrs, "failure", string(failure))...)
		return
	}
	stageLogger.Info("stage completed", attrs...)
}

func forwardPanic(panics chan<- any) {
	if r := recover(); r != nil {
		panics <- r
	}
}

// researchFailure reports a failure only when every lookup failed
func researchFailure(findings models.ResearchFindings) models.FailureKind {
	if len(findings) == 0 {
		return models.FailureNone
	}
	for _, text := range findings {
		if !IsResearchPlaceholder(text) {
			return models.FailureNone
		}
	}
	return models.FailureUpstream
}

// failureFor maps an upstream error onto a pipeline failure kind
func failureFor(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}
	if llm.IsTimeout(err) {
		return models.FailureTimeout
	}
	return models.FailureUpstream
}
