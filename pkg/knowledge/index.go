package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"careassist/internal/observability"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Fragment is a retrieved chunk with its relevance score.
type Fragment struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Index is the searchable chunk index for one document artifact. Each
// session owns exactly one index backed by its own sqlite file, built
// once at ingestion and destroyed when the session is reclaimed.
type Index struct {
	db       *sql.DB
	path     string
	embedder EmbeddingProvider
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	chunks int
}

// NewIndex creates a chunk index at path. When embedder is non-nil a
// vector table is created alongside the FTS5 keyword table.
func NewIndex(path string, embedder EmbeddingProvider, logger zerolog.Logger) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	idx := &Index{
		db:       db,
		path:     path,
		embedder: embedder,
		logger:   logger,
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	return idx, nil
}

func (idx *Index) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);
	`

	if _, err := idx.db.Exec(schema); err != nil {
		return err
	}

	if idx.embedder != nil {
		vectorSchema := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
				chunk_id INTEGER PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, idx.embedder.Dimension())

		if _, err := idx.db.Exec(vectorSchema); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}

	return nil
}

// Add indexes the given chunks. Called once per artifact at build time.
func (idx *Index) Add(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return ErrEmptyContent
	}

	var vectors [][]float32
	if idx.embedder != nil {
		var err error
		vectors, err = idx.embedder.GenerateEmbeddings(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, chunk := range chunks {
		res, err := tx.Exec("INSERT INTO chunks (content) VALUES (?)", chunk)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get chunk id: %w", err)
		}

		if _, err := tx.Exec("INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)", chunkID, chunk); err != nil {
			return fmt.Errorf("failed to index chunk: %w", err)
		}

		if vectors != nil {
			embeddingJSON, err := json.Marshal(vectors[i])
			if err != nil {
				return fmt.Errorf("failed to marshal embedding: %w", err)
			}
			if _, err := tx.Exec("INSERT INTO embeddings (chunk_id, embedding) VALUES (?, ?)", chunkID, string(embeddingJSON)); err != nil {
				return fmt.Errorf("failed to store embedding: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	idx.mu.Lock()
	idx.chunks += len(chunks)
	idx.mu.Unlock()

	return nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.chunks
}

// Search returns the limit most relevant fragments for query. Vector and
// keyword search run in parallel; either side failing degrades to the
// other, both failing is an error.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Fragment, error) {
	idx.mu.RLock()
	if idx.closed {
		idx.mu.RUnlock()
		return nil, ErrIndexClosed
	}
	idx.mu.RUnlock()

	start := time.Now()
	defer func() {
		observability.RecordRetrieval(time.Since(start))
	}()

	if limit <= 0 {
		limit = 4
	}

	var vectorScores, keywordScores map[int64]float64
	var vectorErr, keywordErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if idx.embedder != nil {
			vectorScores, vectorErr = idx.vectorSearch(ctx, query, limit*4)
		}
	}()

	go func() {
		defer wg.Done()
		keywordScores, keywordErr = idx.keywordSearch(query, limit*4)
	}()

	wg.Wait()

	if vectorErr != nil {
		idx.logger.Warn().Err(vectorErr).Msg("Vector search failed, using keyword only")
	}
	if keywordErr != nil {
		idx.logger.Warn().Err(keywordErr).Msg("Keyword search failed, using vector only")
	}
	if vectorErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("both search methods failed: %w", keywordErr)
	}

	merged := mergeScores(vectorScores, keywordScores)
	if len(merged) == 0 {
		// No keyword match at all: fall back to the first chunks so the
		// generation call still sees document content.
		return idx.headFragments(limit)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].score > merged[j].score })
	if len(merged) > limit {
		merged = merged[:limit]
	}

	fragments := make([]Fragment, 0, len(merged))
	for _, m := range merged {
		var content string
		if err := idx.db.QueryRow("SELECT content FROM chunks WHERE id = ?", m.chunkID).Scan(&content); err != nil {
			continue
		}
		fragments = append(fragments, Fragment{Content: content, Score: m.score})
	}

	return fragments, nil
}

func (idx *Index) vectorSearch(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	embedding, err := idx.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT chunk_id, vec_distance_cosine(embedding, ?) AS distance
		FROM embeddings
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[int64]float64)
	for rows.Next() {
		var chunkID int64
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, err
		}
		// cosine distance in [0, 2] -> similarity in [0, 1]
		scores[chunkID] = 1.0 - distance/2.0
	}

	return scores, rows.Err()
}

func (idx *Index) keywordSearch(query string, limit int) (map[int64]float64, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := idx.db.Query(`
		SELECT chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[int64]float64)
	var maxScore float64
	for rows.Next() {
		var chunkID int64
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, err
		}
		// BM25 scores are negative; flip to positive before normalizing
		scores[chunkID] = -score
		if -score > maxScore {
			maxScore = -score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if maxScore > 0 {
		for id := range scores {
			scores[id] /= maxScore
		}
	}

	return scores, nil
}

// ftsQuery turns a free-form question into an FTS5 OR query of its word
// tokens, since raw questions contain operators FTS5 would choke on.
func ftsQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r > 127)
	})

	var terms []string
	for _, f := range fields {
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

type mergedScore struct {
	chunkID int64
	score   float64
}

func mergeScores(vectorScores, keywordScores map[int64]float64) []mergedScore {
	const vectorWeight, keywordWeight = 0.7, 0.3

	ids := make(map[int64]bool)
	for id := range vectorScores {
		ids[id] = true
	}
	for id := range keywordScores {
		ids[id] = true
	}

	merged := make([]mergedScore, 0, len(ids))
	for id := range ids {
		score := vectorScores[id]*vectorWeight + keywordScores[id]*keywordWeight
		if len(vectorScores) == 0 {
			score = keywordScores[id]
		} else if len(keywordScores) == 0 {
			score = vectorScores[id]
		}
		merged = append(merged, mergedScore{chunkID: id, score: score})
	}

	return merged
}

func (idx *Index) headFragments(limit int) ([]Fragment, error) {
	rows, err := idx.db.Query("SELECT content FROM chunks ORDER BY id ASC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fragments []Fragment
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		fragments = append(fragments, Fragment{Content: content})
	}

	return fragments, rows.Err()
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true

	return idx.db.Close()
}

// Destroy closes the index and removes its database file.
func (idx *Index) Destroy() error {
	if err := idx.Close(); err != nil {
		return err
	}

	if err := os.Remove(idx.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove index file: %w", err)
	}
	// WAL sidecars
	os.Remove(idx.path + "-wal")
	os.Remove(idx.path + "-shm")

	return nil
}
