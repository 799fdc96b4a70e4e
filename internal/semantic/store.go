package semantic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vec"
	"github.com/viant/sqlite-vec/vector"
	"go.uber.org/zap"
)

// DefaultCollection is the chunk table used when none is configured.
const DefaultCollection = "papers"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames would collide with bookkeeping tables once the collection's
// virtual table is created under the same name.
var reservedNames = map[string]bool{
	"collections":          true,
	"vector_storage":       true,
	"vector_storage_locks": true,
}

// ValidCollectionName reports whether name can be used as a collection (table) name.
func ValidCollectionName(name string) bool {
	return identPattern.MatchString(name) &&
		!reservedNames[strings.ToLower(name)] &&
		!strings.HasPrefix(strings.ToLower(name), "sqlite_")
}

// Store persists embedded chunks for one collection in a SQLite database.
//
// Chunks live in the shadow table of a sqlite-vec "vec" virtual table, so
// nearest-neighbour queries go through the vec index; an exact scan answers
// when the index cannot.
type Store struct {
	db         *sql.DB
	collection string
	table      string // shadow table holding the chunk rows
	vecPath    string // database path handed to the vec module; empty disables it
	logger     *zap.Logger
}

// Hit is a stored chunk scored against a query vector.
type Hit struct {
	Chunk      paper.Chunk
	Similarity float32
}

// CollectionInfo records which embedding model populated a collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// chunkMeta is stored alongside each chunk so rows stay attributable to their paper.
type chunkMeta struct {
	PaperID string `json:"paperId"`
	Page    int    `json:"page,omitempty"`
}

// OpenStore opens or creates the vector database at path and ensures the collection exists.
func OpenStore(path, collection string) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if !ValidCollectionName(collection) {
		return nil, fmt.Errorf("%w: invalid collection name %q", paper.ErrStorage, collection)
	}

	db, err := engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening vector database: %w", paper.ErrStorage, err)
	}
	// The module must be registered before the first connection opens.
	if err := vec.Register(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: registering vec module: %w", paper.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:         db,
		collection: collection,
		table:      "_vec_" + collection,
		vecPath:    vecDBPath(path),
		logger:     zap.NewNop(),
	}
	if s.vecPath != "" {
		// The vec module reads and persists its index over its own connection
		// while queries on ours are still stepping.
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: enabling WAL: %w", paper.ErrStorage, err)
		}
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	// A build lock left by a killed process would stall queries until it goes stale.
	if _, err := db.Exec(`DELETE FROM vector_storage_locks WHERE shadow_table_name = ?`, s.shadowName()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: clearing index locks: %w", paper.ErrStorage, err)
	}
	return s, nil
}

// vecDBPath returns path if the vec module can open it as a separate
// connection to the same file, or "" otherwise.
func vecDBPath(path string) string {
	switch {
	case path == "", path == ":memory:",
		strings.HasPrefix(path, "file:"),
		strings.ContainsAny(path, "'?"):
		return ""
	}
	return path
}

// SetLogger sets the logger; a nil logger discards.
func (s *Store) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns the collection name.
func (s *Store) Collection() string {
	return s.collection
}

// shadowName is the shadow table as the vec module names it in vector_storage.
func (s *Store) shadowName() string {
	return "main." + s.table
}

// EnsureSchema creates the collection table and its bookkeeping if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			dimensions INTEGER NOT NULL
		)`,
		// Same layout the vec module creates, so its triggers can clear persisted indexes.
		`CREATE TABLE IF NOT EXISTS vector_storage (
			shadow_table_name TEXT NOT NULL,
			dataset_id TEXT NOT NULL DEFAULT '',
			"index" BLOB,
			PRIMARY KEY (shadow_table_name, dataset_id)
		)`,
		`CREATE TABLE IF NOT EXISTS vector_storage_locks (
			shadow_table_name TEXT NOT NULL,
			dataset_id TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL,
			locked_at INTEGER NOT NULL,
			PRIMARY KEY (shadow_table_name, dataset_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			dataset_id TEXT NOT NULL,
			id TEXT NOT NULL,
			paper_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			char_offset INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL,
			meta TEXT NOT NULL DEFAULT '{}',
			embedding BLOB NOT NULL,
			PRIMARY KEY (dataset_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + s.collection + `_paper_id ON ` + s.table + `(paper_id)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: creating schema: %w", paper.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: creating schema: %w", paper.ErrStorage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: creating schema: %w", paper.ErrStorage, err)
	}
	return nil
}

// clearIndex drops the persisted vec index of the collection inside tx.
// Call invalidateIndex once tx commits.
func (s *Store) clearIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM vector_storage WHERE shadow_table_name = ? AND dataset_id = ?`,
		s.shadowName(), s.collection)
	if err != nil {
		return fmt.Errorf("%w: clearing vector index: %w", paper.ErrStorage, err)
	}
	return nil
}

// invalidateIndex drops the in-process copy of the vec index.
func (s *Store) invalidateIndex() {
	vec.InvalidateCache(s.shadowName(), s.collection)
}

// Add inserts all chunks of a paper in a single transaction.
// Either every chunk is stored or none is.
func (s *Store) Add(ctx context.Context, paperID string, chunks []paper.Chunk) error {
	return s.write(ctx, paperID, chunks, false)
}

// Replace atomically swaps the stored chunk set of a paper for a new one.
func (s *Store) Replace(ctx context.Context, paperID string, chunks []paper.Chunk) error {
	return s.write(ctx, paperID, chunks, true)
}

func (s *Store) write(ctx context.Context, paperID string, chunks []paper.Chunk, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning chunk write: %w", paper.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE paper_id = ?`, paperID); err != nil {
			return fmt.Errorf("%w: clearing chunks for %s: %w", paper.ErrStorage, paperID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table+`
		(dataset_id, id, paper_id, ordinal, page, char_offset, content, meta, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing chunk insert: %w", paper.ErrStorage, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.PaperID != paperID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s", paper.ErrStorage, c.ID, c.PaperID, paperID)
		}
		blob, err := vector.EncodeEmbedding(c.Embedding)
		if err != nil {
			return fmt.Errorf("%w: encoding embedding for %s: %w", paper.ErrStorage, c.ID, err)
		}
		meta, err := json.Marshal(chunkMeta{PaperID: paperID, Page: c.Page})
		if err != nil {
			return fmt.Errorf("%w: encoding chunk metadata: %w", paper.ErrStorage, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, c.ID, paperID, c.Ordinal, c.Page, c.Offset, c.Text, string(meta), blob); err != nil {
			return fmt.Errorf("%w: inserting chunk %s: %w", paper.ErrStorage, c.ID, err)
		}
	}

	if err := s.clearIndex(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	s.invalidateIndex()
	return nil
}

// Nearest returns the k chunks most similar to the query vector (all of them
// when k <= 0), highest similarity first with ties ordered by chunk id.
// Zero vectors have no direction and never match.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if s.vecPath != "" {
		hits, err := s.nearestIndexed(ctx, query, k)
		if err == nil {
			return hits, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: searching chunks: %w", paper.ErrStorage, ctx.Err())
		}
		s.logger.Debug("vec index unavailable, scanning chunks",
			zap.String("collection", s.collection), zap.Error(err))
	}
	return s.nearestScan(ctx, query, k)
}

// nearestIndexed answers Nearest with a MATCH query on the vec virtual table.
func (s *Store) nearestIndexed(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if isZero(query) {
		return []Hit{}, nil
	}
	blob, err := vector.EncodeEmbedding(query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	limit := k
	if limit <= 0 {
		limit = -1
	}

	// The virtual table is per connection, so create and query on the same one.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	create := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS temp.%s USING vec(doc_id, dbpath='%s')`,
		s.collection, s.vecPath)
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("creating vec table: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `SELECT c.id, c.paper_id, c.ordinal, c.page, c.char_offset, c.content, c.embedding, v.match_score
		FROM temp.`+s.collection+` v
		JOIN `+s.table+` c ON c.dataset_id = v.dataset_id AND c.id = v.doc_id
		WHERE v.dataset_id = ?
		  AND v.doc_id MATCH ?
		ORDER BY v.match_score DESC
		LIMIT ?`, s.collection, blob, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var c paper.Chunk
		var emb []byte
		var score float64
		if err := rows.Scan(&c.ID, &c.PaperID, &c.Ordinal, &c.Page, &c.Offset, &c.Text, &emb, &score); err != nil {
			return nil, err
		}
		if c.Embedding, err = vector.DecodeEmbedding(emb); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Chunk: c, Similarity: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortHits(hits)
	return hits, nil
}

// nearestScan answers Nearest by scoring every stored chunk.
func (s *Store) nearestScan(ctx context.Context, query []float32, k int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, paper_id, ordinal, page, char_offset, content, embedding FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning chunks: %w", paper.ErrStorage, err)
	}
	defer rows.Close()

	hits := []Hit{}
	if isZero(query) {
		return hits, nil
	}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if isZero(c.Embedding) {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Similarity: CosineSimilarity(query, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning chunks: %w", paper.ErrStorage, err)
	}

	sortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Chunks returns the stored chunks of a paper in ordinal order.
func (s *Store) Chunks(ctx context.Context, paperID string) ([]paper.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, paper_id, ordinal, page, char_offset, content, embedding
		FROM `+s.table+` WHERE paper_id = ? ORDER BY ordinal`, paperID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	defer rows.Close()

	var chunks []paper.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	return chunks, nil
}

func scanChunk(rows *sql.Rows) (paper.Chunk, error) {
	var c paper.Chunk
	var blob []byte
	if err := rows.Scan(&c.ID, &c.PaperID, &c.Ordinal, &c.Page, &c.Offset, &c.Text, &blob); err != nil {
		return paper.Chunk{}, fmt.Errorf("%w: scanning chunk: %w", paper.ErrStorage, err)
	}
	emb, err := vector.DecodeEmbedding(blob)
	if err != nil {
		return paper.Chunk{}, fmt.Errorf("%w: decoding embedding for %s: %w", paper.ErrStorage, c.ID, err)
	}
	c.Embedding = emb
	return c, nil
}

// DeleteByPaperID removes every chunk of a paper. Deleting an unknown paper is a no-op.
func (s *Store) DeleteByPaperID(ctx context.Context, paperID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: deleting chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE paper_id = ?`, paperID)
	if err != nil {
		return fmt.Errorf("%w: deleting chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if err := s.clearIndex(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: deleting chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	s.invalidateIndex()
	return nil
}

// DropAll destroys the collection and recreates it empty.
func (s *Store) DropAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: dropping collection: %w", paper.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+s.table); err != nil {
		return fmt.Errorf("%w: dropping collection: %w", paper.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return fmt.Errorf("%w: dropping collection: %w", paper.ErrStorage, err)
	}
	// Dropping the table also drops the vec triggers, so clear the index here.
	if err := s.clearIndex(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: dropping collection: %w", paper.ErrStorage, err)
	}
	s.invalidateIndex()

	return s.EnsureSchema(ctx)
}

// PaperIDs returns the distinct paper ids that have chunks, sorted.
func (s *Store) PaperIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT paper_id FROM `+s.table+` ORDER BY paper_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing indexed papers: %w", paper.ErrStorage, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning paper id: %w", paper.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing indexed papers: %w", paper.ErrStorage, err)
	}
	return ids, nil
}

// ChunkCount returns how many chunks are stored for a paper.
func (s *Store) ChunkCount(ctx context.Context, paperID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table+` WHERE paper_id = ?`, paperID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks for %s: %w", paper.ErrStorage, paperID, err)
	}
	return n, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", paper.ErrStorage, err)
	}
	return n, nil
}

// Model returns the embedding model recorded for the collection, or nil if none is recorded yet.
func (s *Store) Model(ctx context.Context) (*CollectionInfo, error) {
	info := CollectionInfo{Name: s.collection}
	err := s.db.QueryRowContext(ctx, `SELECT model, dimensions FROM collections WHERE name = ?`, s.collection).
		Scan(&info.Model, &info.Dimensions)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading collection model: %w", paper.ErrStorage, err)
	}
	return &info, nil
}

// SetModel records the embedding model for the collection.
func (s *Store) SetModel(ctx context.Context, model string, dimensions int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, model, dimensions) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET model = excluded.model, dimensions = excluded.dimensions`,
		s.collection, model, dimensions)
	if err != nil {
		return fmt.Errorf("%w: recording collection model: %w", paper.ErrStorage, err)
	}
	return nil
}
