// Package badgerstore keeps blob objects in an embedded Badger database.
//
// An object is stored as fixed-size chunks under "<ns>:chunk:<key>#<gen>#<n>"
// and a meta record under "<ns>:meta:<key>" naming the live generation. A Put
// writes a new generation and swaps the meta record last, so readers see
// either the old object or the complete new one. Delete removes the meta
// record first.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/forPelevin/vodclips/internal/ports"
)

const defaultChunkSize = 4 << 20

type meta struct {
	Gen    uint64 `json:"gen"`
	Size   int64  `json:"size"`
	Chunks int    `json:"chunks"`
}

type Store struct {
	db        *badger.DB
	ns        string
	chunkSize int
	logger    *slog.Logger
}

var _ ports.BlobStore = (*Store)(nil)

// New opens (or creates) the database at path.
func New(path, namespace string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, namespace, logger)
}

// NewInMemory opens a database that lives only as long as the process.
func NewInMemory(namespace string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, namespace, logger)
}

func open(opts badger.Options, namespace string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("badgerstore: namespace is required")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("badger blob store opened", "path", opts.Dir, "namespace", namespace)
	return &Store{db: db, ns: namespace, chunkSize: defaultChunkSize, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) metaKey(key string) []byte { return []byte(s.ns + ":meta:" + key) }

func (s *Store) chunkKey(key string, gen uint64, n int) []byte {
	return []byte(fmt.Sprintf("%s:chunk:%s#%d#%08d", s.ns, key, gen, n))
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	if key == "" {
		return errors.New("badgerstore: empty key")
	}
	prev, err := s.getMeta(key)
	exists := err == nil
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}

	m := meta{Gen: prev.Gen + 1}
	buf := make([]byte, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			s.dropChunks(key, m.Gen, m.Chunks)
			return err
		}
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			chunk := bytes.Clone(buf[:n])
			ck := s.chunkKey(key, m.Gen, m.Chunks)
			if err := s.db.Update(func(txn *badger.Txn) error {
				return txn.Set(ck, chunk)
			}); err != nil {
				s.dropChunks(key, m.Gen, m.Chunks)
				return fmt.Errorf("badgerstore: write chunk %d of %s: %w", m.Chunks, key, err)
			}
			m.Chunks++
			m.Size += int64(n)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			s.dropChunks(key, m.Gen, m.Chunks)
			return fmt.Errorf("badgerstore: read %s: %w", key, readErr)
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		s.dropChunks(key, m.Gen, m.Chunks)
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.metaKey(key), data)
	}); err != nil {
		s.dropChunks(key, m.Gen, m.Chunks)
		return fmt.Errorf("badgerstore: write meta of %s: %w", key, err)
	}
	if exists {
		s.dropChunks(key, prev.Gen, prev.Chunks)
	}
	return nil
}

func (s *Store) getMeta(key string) (meta, error) {
	var m meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.metaKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta{}, fmt.Errorf("%w: %s", ports.ErrNotFound, key)
	}
	return m, err
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.getMeta(key)
	if err != nil {
		return nil, err
	}
	return &chunkReader{ctx: ctx, s: s, key: key, gen: m.Gen, total: m.Chunks}, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.getMeta(key)
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metaPrefix := []byte(s.ns + ":meta:")
	seek := append(bytes.Clone(metaPrefix), prefix...)
	keys := []string{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seek
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(metaPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.getMeta(key)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.metaKey(key))
	}); err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", key, err)
	}
	s.dropChunks(key, m.Gen, m.Chunks)
	return nil
}

func (s *Store) dropChunks(key string, gen uint64, n int) {
	for i := 0; i < n; i++ {
		ck := s.chunkKey(key, gen, i)
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(ck)
		}); err != nil {
			s.logger.Warn("badgerstore: orphaned chunk", "key", key, "chunk", i, "error", err)
		}
	}
}

// Ping runs an empty read transaction.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badgerstore: database closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

type chunkReader struct {
	ctx   context.Context
	s     *Store
	key   string
	gen   uint64
	next  int
	total int
	cur   []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		if r.next >= r.total {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		ck := r.s.chunkKey(r.key, r.gen, r.next)
		err := r.s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(ck)
			if err != nil {
				return err
			}
			r.cur, err = item.ValueCopy(nil)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("badgerstore: read chunk %d of %s: %w", r.next, r.key, err)
		}
		r.next++
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

func (r *chunkReader) Close() error { return nil }
