package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned for missing feeds and metadata.
var ErrNotFound = errors.New("not found")

var (
	feedsBucket   = []byte("feeds")
	postsBucket   = []byte("posts")
	metaBucket    = []byte("metadata")
	queriesBucket = []byte("queries")
)

// Store is the local bbolt database: cached feeds and posts, their fetch
// metadata and the search query cache.
type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{feedsBucket, postsBucket, metaBucket, queriesBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveFeed(feed *Feed) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(feedsBucket), []byte(feed.ID), feed)
	})
}

func (s *Store) GetFeed(id string) (*Feed, error) {
	var feed Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(feedsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("feed %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &feed)
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (s *Store) GetAllFeeds() ([]*Feed, error) {
	var feeds []*Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(feedsBucket).ForEach(func(_ []byte, v []byte) error {
			var feed Feed
			if err := json.Unmarshal(v, &feed); err != nil {
				return err
			}
			feeds = append(feeds, &feed)
			return nil
		})
	})
	// Sort feeds by Title (case-insensitive), fallback to URL
	sort.Slice(feeds, func(i, j int) bool {
		ti := feeds[i].Title
		tj := feeds[j].Title
		if ti == "" {
			ti = feeds[i].URL
		}
		if tj == "" {
			tj = feeds[j].URL
		}
		return strings.ToLower(ti) < strings.ToLower(tj)
	})
	return feeds, err
}

// ReplacePosts stores posts as the complete set of feedID's entries.
func (s *Store) ReplacePosts(feedID string, posts []*Post) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if err := deletePrefix(b, postPrefix(feedID)); err != nil {
			return err
		}
		for _, post := range posts {
			post.FeedID = feedID
			if err := putJSON(b, postKey(feedID, post.ID), post); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPosts returns feedID's posts, newest first. limit <= 0 returns all.
func (s *Store) GetPosts(feedID string, limit int) ([]*Post, error) {
	var posts []*Post
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(postsBucket).Cursor()
		prefix := postPrefix(feedID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var post Post
			if err := json.Unmarshal(v, &post); err != nil {
				continue
			}
			posts = append(posts, &post)
		}
		return nil
	})
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Published.After(posts[j].Published)
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, err
}

func (s *Store) SaveMetadata(meta *FetchMetadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(metaBucket), []byte(meta.FeedID), meta)
	})
}

func (s *Store) GetMetadata(feedID string) (*FetchMetadata, error) {
	var meta FetchMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get([]byte(feedID))
		if data == nil {
			return fmt.Errorf("metadata %s: %w", feedID, ErrNotFound)
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) DeleteFeed(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(feedsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(metaBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(postsBucket), postPrefix(id))
	})
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func postPrefix(feedID string) []byte {
	return []byte(feedID + "\x00")
}

func postKey(feedID, postID string) []byte {
	return append(postPrefix(feedID), postID...)
}
