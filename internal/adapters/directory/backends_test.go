package directory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/domain"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SPACES_TEST_REDIS")
	if addr == "" {
		t.Skip("SPACES_TEST_REDIS not set")
	}
	store, err := Open(context.Background(), config.Directory{Driver: "redis", RedisAddr: addr, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	exerciseStore(t, store, domain.RoomID("test-"+uuid.NewString()))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SPACES_TEST_MONGO")
	if uri == "" {
		t.Skip("SPACES_TEST_MONGO not set")
	}
	store, err := Open(context.Background(), config.Directory{Driver: "mongo", MongoURI: uri, MongoDatabase: "spaces_test", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	exerciseStore(t, store, domain.RoomID("test-"+uuid.NewString()))
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Directory{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
