//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"credreg/pkg/testutil/containers"
)

func TestPostgresUserStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, &UserStoreSuite{newStore: func(t *testing.T) userStore {
		pg := containers.GetManager().GetPostgres(t)
		if err := pg.TruncateTables(context.Background(), "users"); err != nil {
			t.Fatalf("truncate users: %v", err)
		}
		return NewSQLUserStore(pg.DB)
	}})
}
