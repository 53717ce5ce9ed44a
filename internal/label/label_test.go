package label

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kedh/regcore/pkg/errs"
)

type LabelSuite struct {
	suite.Suite
	store   *MemoryStore
	service *Service
}

func TestLabelSuite(t *testing.T) {
	suite.Run(t, new(LabelSuite))
}

func (s *LabelSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.service = NewService(s.store)
}

func (s *LabelSuite) TestParse() {
	s.Run("labels with values", func() {
		entries, err := Parse([]string{"rich,100.00", "gold, 200.00"})
		s.Require().NoError(err)
		s.Len(entries, 2)
		s.Equal("100.00", entries["rich"].Value)
		s.Equal("200.00", entries["gold"].Value)
	})

	s.Run("comments and blank lines are skipped", func() {
		entries, err := Parse([]string{
			"# header comment",
			"",
			"rich,100.00 # inline comment",
			"   ",
		})
		s.Require().NoError(err)
		s.Len(entries, 1)
		s.Equal("100.00", entries["rich"].Value)
	})

	s.Run("labels are lowercased", func() {
		entries, err := Parse([]string{"RICH,100.00"})
		s.Require().NoError(err)
		s.Contains(entries, "rich")
	})

	s.Run("duplicate label keeps the greater value", func() {
		entries, err := Parse([]string{"rich,100.00", "rich,300.00", "rich,200.00"})
		s.Require().NoError(err)
		s.Equal("300.00", entries["rich"].Value)
	})

	s.Run("line without a separator fails", func() {
		_, err := Parse([]string{"just-a-label"})
		s.Error(err)
	})
}

func (s *LabelSuite) TestSave() {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	s.Run("stores the parsed list", func() {
		list, err := s.service.Save(ctx, "tld-premium", KindPremium, []string{"rich,100.00"}, now)
		s.Require().NoError(err)
		s.Equal(now, list.CreationTime)

		stored, err := s.store.GetList(ctx, "tld-premium")
		s.Require().NoError(err)
		s.Equal("100.00", stored.Entries["rich"].Value)
	})

	s.Run("empty name is rejected", func() {
		_, err := s.service.Save(ctx, "", KindPremium, nil, now)
		s.Equal(errs.CodeMissingParameter, errs.CodeOf(err))
	})

	s.Run("unparseable lines are rejected", func() {
		_, err := s.service.Save(ctx, "bad", KindReserved, []string{"no separator"}, now)
		s.Equal(errs.CodeStateMismatch, errs.CodeOf(err))
	})
}

func (s *LabelSuite) TestDelete() {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	s.Run("refuses while a zone references the list", func() {
		_, err := s.service.Save(ctx, "tld-reserved", KindReserved, []string{"police,"}, now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.PutZone(ctx, &Zone{Name: "tld", ReservedLists: []string{"tld-reserved"}}))

		err = s.service.Delete(ctx, "tld-reserved")
		s.Equal(errs.CodeStateMismatch, errs.CodeOf(err))
		s.Contains(err.Error(), "tld")

		// Still there.
		_, err = s.store.GetList(ctx, "tld-reserved")
		s.NoError(err)
	})

	s.Run("deletes an unreferenced list", func() {
		_, err := s.service.Save(ctx, "orphan", KindPremium, nil, now)
		s.Require().NoError(err)

		s.Require().NoError(s.service.Delete(ctx, "orphan"))
		_, err = s.store.GetList(ctx, "orphan")
		s.Error(err)
	})

	s.Run("missing list reports not found", func() {
		err := s.service.Delete(ctx, "never-existed")
		s.Equal(errs.CodeNotFound, errs.CodeOf(err))
	})

	s.Run("deletable again after the zone drops the reference", func() {
		_, err := s.service.Save(ctx, "tld2-reserved", KindReserved, nil, now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.PutZone(ctx, &Zone{Name: "tld2", ReservedLists: []string{"tld2-reserved"}}))
		s.Require().Error(s.service.Delete(ctx, "tld2-reserved"))

		s.Require().NoError(s.store.PutZone(ctx, &Zone{Name: "tld2"}))
		s.NoError(s.service.Delete(ctx, "tld2-reserved"))
	})
}
