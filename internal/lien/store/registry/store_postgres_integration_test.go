//go:build integration

package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store/registry"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
	"github.com/taxlien-online/taxlien-nft/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *registry.Postgres
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = registry.NewPostgres(s.postgres.DB)
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "lien_registry"))
}

func (s *PostgresSuite) newRegistry() *models.Registry {
	reg, err := models.NewRegistry(id.AccountID(uuid.New()), id.AccountID(uuid.New()))
	s.Require().NoError(err)
	return reg
}

func (s *PostgresSuite) TestCreateAndGet() {
	ctx := context.Background()

	_, err := s.store.Get(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	reg := s.newRegistry()
	s.Require().NoError(s.store.Create(ctx, reg))

	got, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(reg.AdminAccount, got.AdminAccount)
	s.Equal(reg.FeeAccount, got.FeeAccount)
	s.Zero(got.NextLienID)

	s.ErrorIs(s.store.Create(ctx, s.newRegistry()), sentinel.ErrConflict)
}

func (s *PostgresSuite) TestExecuteCommitsAndRollsBack() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRegistry()))

	updated, err := s.store.Execute(ctx, func(_ context.Context, reg *models.Registry) error {
		reg.RecordIssuance(42)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(uint64(1), updated.NextLienID)

	boom := errors.New("boom")
	_, err = s.store.Execute(ctx, func(_ context.Context, reg *models.Registry) error {
		reg.RecordIssuance(42)
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), got.NextLienID)
	s.Equal(uint64(42), got.TotalFeesCollected)
}

func (s *PostgresSuite) TestExecuteBeforeCreate() {
	_, err := s.store.Execute(context.Background(), func(_ context.Context, _ *models.Registry) error {
		return nil
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentExecute drives concurrent issuances through the row lock and
// checks that ids stay gapless and fee totals lose no updates.
func (s *PostgresSuite) TestConcurrentExecute() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRegistry()))

	const issuances = 20
	var wg sync.WaitGroup
	seen := make(chan id.LienID, issuances)

	for i := 0; i < issuances; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, func(_ context.Context, reg *models.Registry) error {
				seen <- reg.RecordIssuance(3)
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	close(seen)

	distinct := make(map[id.LienID]bool, issuances)
	for lienID := range seen {
		s.False(distinct[lienID], "id %d assigned twice", lienID)
		distinct[lienID] = true
	}
	s.Len(distinct, issuances)

	got, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(issuances), got.NextLienID)
	s.Equal(uint64(3*issuances), got.TotalFeesCollected)
}
