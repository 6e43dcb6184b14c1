package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"akashic/internal/diagnosis"
	"akashic/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newRecord(tier diagnosis.Tier) diagnosis.Record {
	now := time.Now()
	return diagnosis.Record{
		Token:     uuid.NewString(),
		Name:      "山田太郎",
		BirthDate: "1990-05-15",
		Result:    "result text",
		Tier:      tier,
		Unlocked:  tier == diagnosis.TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *MemoryStoreSuite) TestPutAndGet() {
	s.Run("round-trips a record", func() {
		record := s.newRecord(diagnosis.TierDetailed)
		record.Categories = []string{"love", "work"}
		record.FreeText = "相談内容"
		s.Require().NoError(s.store.Put(s.ctx, record))

		found, err := s.store.Get(s.ctx, record.Token)
		s.Require().NoError(err)
		s.Equal(record.Name, found.Name)
		s.Equal(record.Categories, found.Categories)
		s.Equal(record.FreeText, found.FreeText)
		s.False(found.Unlocked)
	})

	s.Run("returns ErrNotFound for unknown token", func() {
		_, err := s.store.Get(s.ctx, uuid.NewString())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestSetUnlocked() {
	s.Run("first unlock reports a change", func() {
		record := s.newRecord(diagnosis.TierDetailed)
		s.Require().NoError(s.store.Put(s.ctx, record))

		changed, err := s.store.SetUnlocked(s.ctx, record.Token)
		s.Require().NoError(err)
		s.True(changed)

		found, err := s.store.Get(s.ctx, record.Token)
		s.Require().NoError(err)
		s.True(found.Unlocked)
	})

	s.Run("repeated unlock succeeds without a change", func() {
		record := s.newRecord(diagnosis.TierDetailed)
		s.Require().NoError(s.store.Put(s.ctx, record))

		changed, err := s.store.SetUnlocked(s.ctx, record.Token)
		s.Require().NoError(err)
		s.True(changed)

		changed, err = s.store.SetUnlocked(s.ctx, record.Token)
		s.Require().NoError(err)
		s.False(changed)
	})

	s.Run("returns ErrNotFound for unknown token", func() {
		_, err := s.store.SetUnlocked(s.ctx, uuid.NewString())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unlock refreshes UpdatedAt only", func() {
		record := s.newRecord(diagnosis.TierDetailed)
		record.UpdatedAt = record.UpdatedAt.Add(-time.Hour)
		s.Require().NoError(s.store.Put(s.ctx, record))

		_, err := s.store.SetUnlocked(s.ctx, record.Token)
		s.Require().NoError(err)

		found, err := s.store.Get(s.ctx, record.Token)
		s.Require().NoError(err)
		s.True(found.UpdatedAt.After(record.UpdatedAt))
		s.Equal(record.CreatedAt, found.CreatedAt)
	})
}
