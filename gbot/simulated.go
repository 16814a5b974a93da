package gbot

import (
	"context"
	"sort"
	"sync"

	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// SimCommentAPI keeps comments in memory. It backs dry runs and tests, and
// follows the same upsert rules as Client.
type SimCommentAPI struct {
	commenter

	mu       sync.Mutex
	comments map[agreement.CommentKey]*Comment
	nextID   int64
	creates  int
	edits    int
	failFn   func(key agreement.CommentKey) error
}

var _ agreement.CommentAPI = (*SimCommentAPI)(nil)

func NewSimCommentAPI() *SimCommentAPI {
	s := &SimCommentAPI{
		comments: make(map[agreement.CommentKey]*Comment),
		nextID:   1,
	}
	s.commenter = commenter{backend: s}
	return s
}

// FailWith makes every write whose key makes fn return an error fail with
// that error. nil clears it.
func (s *SimCommentAPI) FailWith(fn func(key agreement.CommentKey) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

// Body returns the body of the comment for key.
func (s *SimCommentAPI) Body(key agreement.CommentKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[key]
	if !ok {
		return "", false
	}
	return c.Body, true
}

// Snapshot returns a copy of all comments by key.
func (s *SimCommentAPI) Snapshot() map[agreement.CommentKey]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[agreement.CommentKey]string, len(s.comments))
	for k, c := range s.comments {
		out[k] = c.Body
	}
	return out
}

// Keys returns the keys of all comments in a stable order.
func (s *SimCommentAPI) Keys() []agreement.CommentKey {
	s.mu.Lock()
	keys := make([]agreement.CommentKey, 0, len(s.comments))
	for k := range s.comments {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Writes returns how many comments were created and edited.
func (s *SimCommentAPI) Writes() (creates, edits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.edits
}

func (s *SimCommentAPI) find(ctx context.Context, key agreement.CommentKey) (*Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[key]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *SimCommentAPI) create(ctx context.Context, key agreement.CommentKey, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFn != nil {
		if err := s.failFn(key); err != nil {
			return err
		}
	}
	s.comments[key] = &Comment{ID: s.nextID, Body: body}
	s.nextID++
	s.creates++

	logger.WithField("comment", key.String()).Info("dry-run: comment created")
	logger.Debug(body)
	return nil
}

func (s *SimCommentAPI) edit(ctx context.Context, key agreement.CommentKey, commentID int64, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFn != nil {
		if err := s.failFn(key); err != nil {
			return err
		}
	}
	c, ok := s.comments[key]
	if !ok || c.ID != commentID {
		return &APIError{StatusCode: 404, Message: "Not Found"}
	}
	c.Body = body
	s.edits++

	logger.WithField("comment", key.String()).Info("dry-run: comment updated")
	logger.Debug(body)
	return nil
}
