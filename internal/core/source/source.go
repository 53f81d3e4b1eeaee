// Package source describes avatar candidates and how each one turns into
// something renderable.
//
// A Source is a plain value: a fixed type, a mutable identifier and a kind
// tag. Sync sources format a URL or text directly. Async sources format the
// URL of an API request instead, and turn the fetched payload into the final
// image URL with ProcessResponse.
package source

import (
	"errors"
	"fmt"

	"github.com/vietddude/avatar/internal/core/domain"
)

var (
	// ErrEmptySourceID is returned when a candidate is built for an absent value.
	ErrEmptySourceID = errors.New("source id is empty")

	// ErrNotAsync is returned by ProcessResponse on a sync source.
	ErrNotAsync = errors.New("source does not fetch asynchronously")
)

type avatarFunc func(id string, size int) string

type processFunc func(payload []byte, size int) (string, error)

// Source is one avatar candidate.
type Source struct {
	sourceType domain.SourceType
	sourceID   string
	kind       domain.Kind
	avatar     avatarFunc
	process    processFunc
}

// Type returns the source type. It never changes after construction.
func (s *Source) Type() domain.SourceType {
	return s.sourceType
}

// ID returns the current identifier.
func (s *Source) ID() string {
	return s.sourceID
}

// SetID updates the identifier in place.
func (s *Source) SetID(id string) {
	s.sourceID = id
}

// Kind returns the dispatch tag.
func (s *Source) Kind() domain.Kind {
	return s.kind
}

// IsAsync reports whether the source needs the fetch pipeline.
func (s *Source) IsAsync() bool {
	return s.kind == domain.KindAsync
}

// Key returns the failure registry identity for the current type and id.
func (s *Source) Key() string {
	return domain.SourceKey(s.sourceType, s.sourceID)
}

// Avatar returns the renderable value for sync sources (an image URL or
// initials text) and the request URL for async sources.
func (s *Source) Avatar(size int) string {
	return s.avatar(s.sourceID, size)
}

// ProcessResponse turns a fetched payload into an image URL.
func (s *Source) ProcessResponse(payload []byte, size int) (string, error) {
	if s.process == nil {
		return "", fmt.Errorf("%s: %w", s.sourceType, ErrNotAsync)
	}
	return s.process(payload, size)
}

// Ref returns a detached description of the source.
func (s *Source) Ref() Ref {
	return Ref{Type: s.sourceType, ID: s.sourceID, Kind: s.kind.String()}
}

// Ref is the externally visible snapshot of a Source.
type Ref struct {
	Type domain.SourceType `json:"type"`
	ID   string            `json:"id"`
	Kind string            `json:"kind"`
}
