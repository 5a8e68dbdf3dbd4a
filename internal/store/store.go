// Package store abstracts the hierarchical record store the pipeline reads
// from and writes to. Records are JSON values addressed by slash-separated
// paths; writers get single-key atomicity and subscribers get push
// notification of changes. Cross-key operations are not transactional.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Path roots used by the pipeline.
const (
	MessagesPrefix    = "messages"
	FlagsPrefix       = "flaggedMessages"
	UsersPrefix       = "users"
	CredentialsPrefix = "credentials"
	BansPrefix        = "bans"
	ActivityPrefix    = "userActivity"
	ReportsPrefix     = "analyticsReports"
	RulesPrefix       = "moderationRules"
)

// ErrNotFound is returned by Read when no record exists at the path.
var ErrNotFound = errors.New("record not found")

// ErrRead and ErrWrite mark store I/O failures. Both are safe to retry.
var (
	ErrRead  = errors.New("store read failed")
	ErrWrite = errors.New("store write failed")
)

// Event is one change notification delivered to a subscriber.
type Event struct {
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// RecordStore is the persistence contract. Implementations provide
// single-key write atomicity; nothing more is assumed.
type RecordStore interface {
	// Read unmarshals the record at path into out. ErrNotFound if absent.
	Read(ctx context.Context, path string, out interface{}) error

	// Write replaces the record at path.
	Write(ctx context.Context, path string, value interface{}) error

	// Merge overlays fields onto the record at path, creating it if absent.
	Merge(ctx context.Context, path string, fields map[string]interface{}) error

	// Delete removes the record at path. Deleting an absent record is a no-op.
	Delete(ctx context.Context, path string) error

	// Append writes value under a new server-generated child key of prefix
	// and returns that key.
	Append(ctx context.Context, prefix string, value interface{}) (string, error)

	// List streams every record under prefix to fn. fn returning an error
	// stops the walk.
	List(ctx context.Context, prefix string, fn func(path string, raw []byte) error) error

	// Subscribe delivers change events for paths under prefix until the
	// returned cancel func is called or ctx ends. Current records are
	// delivered first as synthetic write events.
	Subscribe(ctx context.Context, prefix string) (<-chan Event, func(), error)

	Close() error
}

// Join builds a record path from segments.
func Join(segs ...string) string {
	path := segs[0]
	for _, s := range segs[1:] {
		path += "/" + s
	}
	return path
}

// NewChildKey generates a unique child key for Append implementations.
func NewChildKey() string {
	return uuid.New().String()
}

func readErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRead, path, err)
}

func writeErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
}
