package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentflow/agentflow/internal/models"
)

const insightKeyPrefix = "insight:"

// BadgerInsightStore implements InsightStore using an embedded BadgerDB,
// the default backend for single-node deployments.
type BadgerInsightStore struct {
	db *badger.DB
}

// NewBadgerInsightStore opens (creating if needed) the Badger database
func NewBadgerInsightStore(path string) (*BadgerInsightStore, error) {
	opts := badger.DefaultOptions(expandPath(path)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerInsightStore{db: db}, nil
}

// Upsert stores the insight under its (project, task type) key, overwriting
// any previous value (last writer wins).
func (s *BadgerInsightStore) Upsert(ctx context.Context, insight *models.Insight) error {
	data, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("failed to marshal insight: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(insightKey(insight.ProjectPath, insight.TaskType), data)
	})
}

// Get retrieves the insight for a (project, task type) pair, or nil if absent
func (s *BadgerInsightStore) Get(ctx context.Context, projectPath, taskType string) (*models.Insight, error) {
	var insight models.Insight

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(insightKey(projectPath, taskType))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &insight)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

// List returns every stored insight
func (s *BadgerInsightStore) List(ctx context.Context) ([]*models.Insight, error) {
	var insights []*models.Insight

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(insightKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var insight models.Insight
				if err := json.Unmarshal(val, &insight); err != nil {
					return nil // skip malformed entries
				}
				insights = append(insights, &insight)
				return nil
			})
			if err != nil {
				continue
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return insights, nil
}

// Close closes the BadgerDB instance
func (s *BadgerInsightStore) Close() error {
	return s.db.Close()
}

func insightKey(projectPath, taskType string) []byte {
	return []byte(fmt.Sprintf("%s%s|%s", insightKeyPrefix, projectPath, taskType))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
