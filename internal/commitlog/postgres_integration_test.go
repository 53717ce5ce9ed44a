//go:build integration

package commitlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/pkg/platform/sentinel"
	"github.com/kedh/regcore/pkg/testutil/containers"
)

var base = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

type PostgresCommitLogSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *commitlog.PostgresStore
	log      *commitlog.Log
}

func TestPostgresCommitLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresCommitLogSuite))
}

func (s *PostgresCommitLogSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = commitlog.NewPostgresStore(s.postgres.DB)

	var err error
	s.log, err = commitlog.NewLog(s.store, 3)
	s.Require().NoError(err)
}

func (s *PostgresCommitLogSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"commit_log_manifests", "commit_log_checkpoints", "commit_log_checkpoint_root")
	s.Require().NoError(err)
}

func (s *PostgresCommitLogSuite) TestManifestRoundTrip() {
	ctx := context.Background()

	m, err := s.log.Record(ctx, "resource/2-ROID", base,
		[]commitlog.Key{commitlog.EntityKey("resource", "2-ROID")},
		[]commitlog.Key{commitlog.EntityKey("poll", "p1")})
	s.Require().NoError(err)

	listed, err := s.store.ListManifests(ctx, m.BucketID, time.Time{}, base, 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(m.Mutated, listed[0].Mutated)
	s.Equal(m.Deleted, listed[0].Deleted)
	s.True(base.Equal(listed[0].CommitTime))

	latest, err := s.store.LatestManifestTime(ctx, m.BucketID)
	s.Require().NoError(err)
	s.True(base.Equal(latest))
}

func (s *PostgresCommitLogSuite) TestCheckpointRootUpsert() {
	ctx := context.Background()

	_, err := s.store.GetCheckpointRoot(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	first, err := commitlog.NewCheckpointer(s.log).WriteCheckpoint(ctx, base)
	s.Require().NoError(err)
	second, err := commitlog.NewCheckpointer(s.log).WriteCheckpoint(ctx, base.Add(time.Hour))
	s.Require().NoError(err)

	got, err := s.store.GetCheckpointRoot(ctx)
	s.Require().NoError(err)
	s.True(second.CheckpointTime.Equal(got.CheckpointTime))
	s.False(first.CheckpointTime.Equal(got.CheckpointTime))
	s.Len(got.BucketTimes, 3)
}

func (s *PostgresCommitLogSuite) TestDeleteBucketContents() {
	ctx := context.Background()

	var bucket int
	for i := 0; i < 10; i++ {
		scope := string(rune('a' + i))
		m, err := s.log.Record(ctx, scope, base.Add(time.Duration(i)*time.Minute),
			[]commitlog.Key{commitlog.EntityKey("resource", scope)}, nil)
		s.Require().NoError(err)
		if i == 0 {
			bucket = m.BucketID
		}
	}

	deleted, err := s.store.DeleteBucketContents(ctx, bucket)
	s.Require().NoError(err)
	s.Positive(deleted)

	listed, err := s.store.ListManifests(ctx, bucket, time.Time{}, base.Add(24*time.Hour), 0)
	s.Require().NoError(err)
	s.Empty(listed)
}
