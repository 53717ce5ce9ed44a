// Package info serves projection-backed read flows: resolve a resource to
// its logically-current state at an instant without writing anything.
package info

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/projection"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/errs"
	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// ErrResourceDoesNotExist covers both a resource that never existed and one
// deleted as of the query instant; query flows do not distinguish them.
var ErrResourceDoesNotExist = errs.New(errs.CodeNotFound, "resource does not exist")

// Service answers info queries against projected state.
type Service struct {
	resources store.ResourceStore
}

func NewService(resources store.ResourceStore) *Service {
	return &Service{resources: resources}
}

// Project returns the resource advanced to asOf, or ErrResourceDoesNotExist
// for tombstones and unknown IDs.
func (s *Service) Project(ctx context.Context, repoID string, asOf time.Time) (*model.Resource, error) {
	res, err := s.resources.Get(ctx, repoID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrResourceDoesNotExist
		}
		return nil, err
	}
	if !projection.IsActive(res, asOf) {
		return nil, ErrResourceDoesNotExist
	}
	return projection.Project(res, asOf), nil
}

// Marks decodes the signed-mark payloads stored on an application. A stored
// payload that fails to decode means the store itself holds corrupt data;
// that is an internal failure, never a benign protocol error.
func (s *Service) Marks(ctx context.Context, repoID string, asOf time.Time) ([][]byte, error) {
	res, err := s.Project(ctx, repoID, asOf)
	if err != nil {
		return nil, err
	}
	if res.Kind != model.KindApplication {
		return nil, errs.New(errs.CodeStateMismatch, "resource does not carry signed marks")
	}
	marks := make([][]byte, 0, len(res.EncodedSignedMarks))
	for _, encoded := range res.EncodedSignedMarks {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeCorrupt, "stored signed mark failed to decode")
		}
		marks = append(marks, raw)
	}
	return marks, nil
}
