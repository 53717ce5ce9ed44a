package info

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/errs"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, res *model.Resource) *Service {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.Stores().Resources.Create(context.Background(), res))
	return NewService(mem.Stores().Resources)
}

func application(marks ...string) *model.Resource {
	return &model.Resource{
		RepoID:             "5-ROID",
		Kind:               model.KindApplication,
		Name:               "example.test",
		CurrentSponsor:     "TheRegistrar",
		CreationTime:       now.Add(-24 * time.Hour),
		UpdateTime:         now.Add(-24 * time.Hour),
		DeletionTime:       model.EndOfTime,
		Statuses:           model.NewStatusSet(model.StatusOK),
		EncodedSignedMarks: marks,
	}
}

func TestProjectReturnsProjectedResource(t *testing.T) {
	res := application()
	res.Transfer = &model.TransferRecord{
		Status:         model.TransferPending,
		GainingID:      "NewRegistrar",
		LosingID:       "TheRegistrar",
		ExpirationTime: now.Add(-time.Hour),
	}
	svc := seed(t, res)

	got, err := svc.Project(context.Background(), "5-ROID", now)
	require.NoError(t, err)
	assert.Equal(t, "NewRegistrar", got.CurrentSponsor)
}

func TestProjectMissingResource(t *testing.T) {
	svc := NewService(store.NewMemory().Stores().Resources)
	_, err := svc.Project(context.Background(), "5-ROID", now)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestProjectTombstoneIsNotFound(t *testing.T) {
	res := application()
	res.DeletionTime = now.Add(-time.Hour)
	svc := seed(t, res)

	_, err := svc.Project(context.Background(), "5-ROID", now)
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))

	// Before the deletion instant the resource is still visible.
	got, err := svc.Project(context.Background(), "5-ROID", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "5-ROID", got.RepoID)
}

func TestMarksDecodesStoredPayloads(t *testing.T) {
	svc := seed(t, application(
		base64.StdEncoding.EncodeToString([]byte("mark-one")),
		base64.StdEncoding.EncodeToString([]byte("mark-two")),
	))

	marks, err := svc.Marks(context.Background(), "5-ROID", now)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("mark-one"), []byte("mark-two")}, marks)
}

func TestMarksCorruptPayloadIsInternal(t *testing.T) {
	svc := seed(t, application("%%% not base64 %%%"))

	_, err := svc.Marks(context.Background(), "5-ROID", now)
	assert.Equal(t, errs.CodeCorrupt, errs.CodeOf(err))
}

func TestMarksOnNonApplication(t *testing.T) {
	res := application()
	res.Kind = model.KindDomain
	svc := seed(t, res)

	_, err := svc.Marks(context.Background(), "5-ROID", now)
	assert.Equal(t, errs.CodeStateMismatch, errs.CodeOf(err))
}
