package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/vowmud/internal/storage"
	"github.com/cory-johannsen/vowmud/internal/storage/postgres"
	"github.com/cory-johannsen/vowmud/internal/testutil"
)

var _ storage.Gateway = (*postgres.Store)(nil)

func TestStore_GatewayContract(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	testutil.RunGatewayContract(t, postgres.NewStore(pc.Pool))
}

func TestPool_Health(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 2*time.Second))
}
