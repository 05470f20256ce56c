package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the client registry of the reference webhook endpoint on top of a BoltDB file.
// Each registered widget client is stored as JSON under its ID in the "clients" bucket.
type BoltDB struct {
	db *bolt.DB
}

var clientsBucket = []byte("clients")

// NewBoltDB opens (or creates with 0600 permissions) the database at path and makes sure the
// clients bucket exists.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(clientsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create clients bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Client returns the client registered under id. The boolean is false when no such client exists.
func (b BoltDB) Client(_ context.Context, id string) (models.Client, bool, error) {
	var client models.Client
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(clientsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &client); err != nil {
			return fmt.Errorf("failed to unmarshal client: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Client{}, false, err
	}
	return client, found, nil
}

// Clients returns every registered client ordered by ID.
func (b BoltDB) Clients(context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).ForEach(func(_, v []byte) error {
			var client models.Client
			if err := json.Unmarshal(v, &client); err != nil {
				return fmt.Errorf("failed to unmarshal client: %w", err)
			}
			clients = append(clients, client)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// PutClient registers client, replacing any client with the same ID.
func (b BoltDB) PutClient(_ context.Context, client models.Client) error {
	if client.ID == "" {
		return fmt.Errorf("client id is required")
	}

	v, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).Put([]byte(client.ID), v)
	})
}

// DeleteClient removes the client registered under id. Deleting an unknown client is not an error.
func (b BoltDB) DeleteClient(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).Delete([]byte(id))
	})
}
