// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"sos/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore keeps JSON encoded entities of one kind under a key prefix
type BadgerStore[T Entity] struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore[T Entity](db *badger.DB, prefix string) *BadgerStore[T] {
	return &BadgerStore[T]{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore[T]) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore[T]) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *BadgerStore[T]) encode(entity T) ([]byte, []byte, error) {
	if entity.GetID() == "" {
		return nil, nil, errors.ValidationError("entity ID cannot be empty", nil)
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling entity: %w", err)
	}
	return s.makeKey(entity.GetID()), data, nil
}

// Create stores a new entity and fails if the ID is taken
func (s *BadgerStore[T]) Create(entity T) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errors.ValidationError(fmt.Sprintf("entity already exists: %s", entity.GetID()), nil)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

// Put stores the entity whether or not it exists
func (s *BadgerStore[T]) Put(entity T) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore[T]) Get(id string) (T, error) {
	var entity T
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		})
	})

	if err == badger.ErrKeyNotFound {
		return entity, errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
	}
	return entity, err
}

// Exists reports whether an entity with the ID is stored
func (s *BadgerStore[T]) Exists(id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.makeKey(id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore[T]) Update(entity T) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, entity.GetID()))
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore[T]) Delete(id string) error {
	key := s.makeKey(id)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// List returns all entities in key order
func (s *BadgerStore[T]) List() ([]T, error) {
	return s.ListPrefix("")
}

// ListPrefix returns the entities whose ID starts with idPrefix, in key order
func (s *BadgerStore[T]) ListPrefix(idPrefix string) ([]T, error) {
	var results []T
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := s.makeKey(idPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entity T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entity)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", s.stripPrefix(it.Item().Key()), err)
			}
			results = append(results, entity)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return results, nil
}
