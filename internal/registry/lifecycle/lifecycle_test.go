package lifecycle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/platform/clock"
	"github.com/kedh/regcore/internal/registry/index"
	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/pkg/errs"
)

var start = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type LifecycleSuite struct {
	suite.Suite
	mem     *store.Memory
	entries *index.MemoryStore
	clStore *commitlog.MemoryStore
	clock   *clock.Fake
	service *Service
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.mem = store.NewMemory()
	s.entries = index.NewMemoryStore()
	s.clStore = commitlog.NewMemoryStore()
	s.clock = clock.NewFake(start)
	log, err := commitlog.NewLog(s.clStore, 3)
	s.Require().NoError(err)
	merger := index.NewMerger(s.entries, s.mem.Stores().Resources)
	s.service = NewService(s.mem.Stores(), s.mem, log, merger, s.clock, slog.Default())
}

func (s *LifecycleSuite) create(repoID string) *model.Resource {
	res, err := s.service.Create(context.Background(), CreateArgs{
		RepoID:            repoID,
		Kind:              model.KindDomain,
		Name:              "example.test",
		Sponsor:           "TheRegistrar",
		RegistrationYears: 2,
	})
	s.Require().NoError(err)
	return res
}

func (s *LifecycleSuite) TestCreate() {
	ctx := context.Background()

	s.Run("persists the resource with expiration and history", func() {
		s.SetupTest()
		res := s.create("1-ROID")

		s.Equal(start, res.CreationTime)
		s.Equal(model.EndOfTime, res.DeletionTime)
		s.Equal(start.AddDate(2, 0, 0), res.ExpirationTime)

		stored, err := s.mem.Stores().Resources.Get(ctx, "1-ROID")
		s.Require().NoError(err)
		s.Equal("TheRegistrar", stored.CurrentSponsor)

		entries, err := s.mem.Stores().History.ListByResource(ctx, "1-ROID")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(model.HistoryCreate, entries[0].Type)
	})

	s.Run("merges the name reference into the index", func() {
		s.SetupTest()
		s.create("1-ROID")

		entry, err := s.entries.Get(ctx, "example.test")
		s.Require().NoError(err)
		s.Equal([]string{"1-ROID"}, entry.RepoIDs)
	})

	s.Run("contacts carry no registration period", func() {
		s.SetupTest()
		res, err := s.service.Create(ctx, CreateArgs{
			RepoID: "2-ROID", Kind: model.KindContact, Name: "sh8013",
			Sponsor: "TheRegistrar", RegistrationYears: 2,
		})
		s.Require().NoError(err)
		s.True(res.ExpirationTime.IsZero())
	})

	s.Run("duplicate repo id", func() {
		s.SetupTest()
		s.create("1-ROID")
		_, err := s.service.Create(ctx, CreateArgs{
			RepoID: "1-ROID", Kind: model.KindDomain, Name: "other.test", Sponsor: "TheRegistrar",
		})
		s.ErrorIs(err, ErrAlreadyExists)
	})

	s.Run("missing parameters", func() {
		s.SetupTest()
		_, err := s.service.Create(ctx, CreateArgs{RepoID: "1-ROID"})
		s.Equal(errs.CodeMissingParameter, errs.CodeOf(err))
	})
}

func (s *LifecycleSuite) TestDelete() {
	ctx := context.Background()

	s.Run("tombstones without removing the row", func() {
		s.SetupTest()
		s.create("1-ROID")
		s.clock.Advance(time.Hour)

		s.Require().NoError(s.service.Delete(ctx, "1-ROID", "TheRegistrar"))

		stored, err := s.mem.Stores().Resources.Get(ctx, "1-ROID")
		s.Require().NoError(err)
		s.Equal(start.Add(time.Hour), stored.DeletionTime)
		s.False(stored.IsActive(start.Add(2 * time.Hour)))
		s.True(stored.IsActive(start.Add(30 * time.Minute)))

		// The index keeps the reference.
		entry, err := s.entries.Get(ctx, "example.test")
		s.Require().NoError(err)
		s.Contains(entry.RepoIDs, "1-ROID")
	})

	s.Run("only the sponsor may delete", func() {
		s.SetupTest()
		s.create("1-ROID")
		err := s.service.Delete(ctx, "1-ROID", "OtherRegistrar")
		s.Equal(errs.CodeUnauthorized, errs.CodeOf(err))
	})

	s.Run("deleting twice reports not found", func() {
		s.SetupTest()
		s.create("1-ROID")
		s.clock.Advance(time.Hour)
		s.Require().NoError(s.service.Delete(ctx, "1-ROID", "TheRegistrar"))
		s.clock.Advance(time.Hour)

		err := s.service.Delete(ctx, "1-ROID", "TheRegistrar")
		s.Equal(errs.CodeNotFound, errs.CodeOf(err))
	})

	s.Run("missing resource", func() {
		s.SetupTest()
		err := s.service.Delete(ctx, "9-ROID", "TheRegistrar")
		s.Equal(errs.CodeNotFound, errs.CodeOf(err))
	})
}
