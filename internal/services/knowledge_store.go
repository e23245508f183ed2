package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"healthbot/internal/database"
	"healthbot/internal/llm"
	"healthbot/internal/models"
)

// ErrRecordNotFound is returned by Get when no record has the id
var ErrRecordNotFound = errors.New("knowledge record not found")

// KnowledgeStore holds tips, products, chat transcripts and feedback in a
// single SQL table and answers similarity queries over them.
type KnowledgeStore struct {
	db       *database.DB
	embedder llm.Embedder

	// query text -> []float32, so repeated questions skip the embedding call
	queryEmbeddings *cache.Cache
}

// EmbeddingTask is a stored record that still needs a vector
type EmbeddingTask struct {
	Collection string
	ID         string
	Document   string
}

// NewKnowledgeStore creates a store. embedder may be nil, in which case all
// similarity queries use keyword overlap.
func NewKnowledgeStore(db *database.DB, embedder llm.Embedder) *KnowledgeStore {
	return &KnowledgeStore{
		db:              db,
		embedder:        embedder,
		queryEmbeddings: cache.New(10*time.Minute, 20*time.Minute),
	}
}

// HasEmbedder reports whether semantic scoring is available
func (s *KnowledgeStore) HasEmbedder() bool {
	return s.embedder != nil
}

// Ping checks the underlying database
func (s *KnowledgeStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type storedRecord struct {
	match     models.Match
	embedding []float32
}

// SimilarityQuery returns up to limit records from collection ranked by
// relevance to query. filter is an exact match on metadata values. Results
// are ordered by score descending, ties broken by ID.
func (s *KnowledgeStore) SimilarityQuery(ctx context.Context, collection, query string, limit int, filter map[string]string) ([]models.Match, error) {
	if !models.IsKnownCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	if limit <= 0 {
		limit = 3
	}

	queryVec := s.embedQuery(ctx, query)

	records, err := s.load(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	for i := range records {
		rec := &records[i]
		if queryVec != nil && len(rec.embedding) == len(queryVec) {
			rec.match.Score = cosineSimilarity(queryVec, rec.embedding)
			continue
		}
		rec.match.Score = keywordOverlap(queryTokens, rec.match.Document+" "+rec.match.MetaString("name", ""))
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].match.Score != records[j].match.Score {
			return records[i].match.Score > records[j].match.Score
		}
		return records[i].match.ID < records[j].match.ID
	})

	if len(records) > limit {
		records = records[:limit]
	}

	matches := make([]models.Match, len(records))
	for i, rec := range records {
		matches[i] = rec.match
	}
	return matches, nil
}

// List returns every record in collection matching filter, ordered by ID
func (s *KnowledgeStore) List(ctx context.Context, collection string, filter map[string]string) ([]models.Match, error) {
	if !models.IsKnownCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	records, err := s.load(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, len(records))
	for i, rec := range records {
		matches[i] = rec.match
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// Append upserts a record. An empty id gets a generated one. The document is
// embedded when an embedder is configured; embedding failures store the
// record without a vector for the backfill job to complete.
func (s *KnowledgeStore) Append(ctx context.Context, collection, document string, metadata map[string]any, id string) (string, error) {
	if !models.IsKnownCollection(collection) {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	if id == "" {
		id = uuid.New().String()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to serialize metadata: %w", err)
	}

	var embeddingJSON, embeddingModel sql.NullString
	if s.embedder != nil && collection != models.CollectionFeedback {
		vec, err := s.embedder.Embed(ctx, document)
		if err != nil {
			log.Printf("⚠️  [KNOWLEDGE] Embedding failed for %s/%s, storing without vector: %v", collection, id, err)
		} else if raw, err := json.Marshal(vec); err == nil {
			embeddingJSON = sql.NullString{String: string(raw), Valid: true}
			embeddingModel = sql.NullString{String: s.embedder.Name(), Valid: true}
		}
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO knowledge_records (collection, id, document, metadata, embedding, embedding_model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collection, id, document, string(metaJSON), embeddingJSON, embeddingModel, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", collection, err)
	}
	return id, nil
}

// Get returns one record by id
func (s *KnowledgeStore) Get(ctx context.Context, collection, id string) (*models.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document, metadata, created_at FROM knowledge_records WHERE collection = ? AND id = ?`,
		collection, id,
	)

	var (
		match     models.Match
		metaJSON  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&match.ID, &match.Document, &metaJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	match.Metadata = decodeMetadata(metaJSON)
	match.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &match, nil
}

// Count returns the number of records in collection
func (s *KnowledgeStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_records WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// DeleteBefore removes records of collection created before cutoff
func (s *KnowledgeStore) DeleteBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_records WHERE collection = ? AND created_at < ?`,
		collection, cutoff.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old %s records: %w", collection, err)
	}
	return res.RowsAffected()
}

// MissingEmbeddings lists searchable records stored without a vector
func (s *KnowledgeStore) MissingEmbeddings(ctx context.Context, limit int) ([]EmbeddingTask, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, id, document FROM knowledge_records
		 WHERE embedding IS NULL AND collection IN (?, ?)
		 ORDER BY collection, id LIMIT ?`,
		models.CollectionHealthTips, models.CollectionProducts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records without embeddings: %w", err)
	}
	defer rows.Close()

	var tasks []EmbeddingTask
	for rows.Next() {
		var t EmbeddingTask
		if err := rows.Scan(&t.Collection, &t.ID, &t.Document); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetEmbedding stores a vector computed outside Append
func (s *KnowledgeStore) SetEmbedding(ctx context.Context, collection, id string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}

	engine := ""
	if s.embedder != nil {
		engine = s.embedder.Name()
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE knowledge_records SET embedding = ?, embedding_model = ? WHERE collection = ? AND id = ?`,
		string(raw), engine, collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s/%s: %w", collection, id, err)
	}
	return nil
}

// Embed exposes the configured embedder to the backfill job
func (s *KnowledgeStore) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}
	return s.embedder.Embed(ctx, text)
}

// load reads a collection fully before any further query runs on the
// connection
func (s *KnowledgeStore) load(ctx context.Context, collection string, filter map[string]string) ([]storedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding, created_at FROM knowledge_records WHERE collection = ?`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var records []storedRecord
	for rows.Next() {
		var (
			rec           storedRecord
			metaJSON      sql.NullString
			embeddingJSON sql.NullString
			createdAt     int64
		)
		if err := rows.Scan(&rec.match.ID, &rec.match.Document, &metaJSON, &embeddingJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", collection, err)
		}

		rec.match.Metadata = decodeMetadata(metaJSON)
		rec.match.CreatedAt = time.UnixMilli(createdAt).UTC()
		if !matchesFilter(rec.match, filter) {
			continue
		}

		if embeddingJSON.Valid && embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.embedding); err != nil {
				rec.embedding = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	return records, nil
}

// embedQuery returns nil when no embedder is configured or embedding fails;
// callers fall back to keyword scoring
func (s *KnowledgeStore) embedQuery(ctx context.Context, query string) []float32 {
	if s.embedder == nil || strings.TrimSpace(query) == "" {
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(query))
	if cached, found := s.queryEmbeddings.Get(key); found {
		return cached.([]float32)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Query embedding failed, using keyword scoring: %v", err)
		return nil
	}
	s.queryEmbeddings.Set(key, vec, cache.DefaultExpiration)
	return vec
}

func decodeMetadata(raw sql.NullString) map[string]any {
	meta := map[string]any{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
			return map[string]any{}
		}
	}
	return meta
}

func matchesFilter(m models.Match, filter map[string]string) bool {
	for key, want := range filter {
		if m.MetaString(key, "") != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// keywordOverlap is the fraction of query terms present in text
func keywordOverlap(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		present[tok] = struct{}{}
	}

	hits := 0
	for _, tok := range queryTokens {
		if _, ok := present[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// tokenize lowercases text and splits it into unique terms of three or more
// letters or digits
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
