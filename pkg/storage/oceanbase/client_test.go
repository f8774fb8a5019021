package oceanbase

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/storage"
	"github.com/oceanbase/powermem-recall/pkg/storage/storagetest"
)

func setupOceanBaseTest(t *testing.T, dims int) storage.VectorStore {
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	host := os.Getenv("OCEANBASE_HOST")
	if host == "" {
		t.Skip("Skipping OceanBase test: OCEANBASE_HOST not set")
	}
	port, err := strconv.Atoi(getenv("OCEANBASE_PORT", "2881"))
	if err != nil {
		t.Skipf("Skipping OceanBase test: invalid OCEANBASE_PORT: %v", err)
	}

	store, err := NewClient(&Config{
		Host:               host,
		Port:               port,
		User:               getenv("OCEANBASE_USER", "root@test"),
		Password:           os.Getenv("OCEANBASE_PASSWORD"),
		DBName:             getenv("OCEANBASE_DATABASE", "powermem_test"),
		CollectionName:     "recall_suite_test",
		EmbeddingModelDims: dims,
	})
	if err != nil {
		t.Skipf("Skipping OceanBase test: failed to connect: %v", err)
	}

	ctx := context.Background()
	for _, tenant := range []string{"t1", "t2"} {
		_ = store.DeleteAll(ctx, &storage.DeleteAllOptions{TenantID: tenant})
	}
	return store
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestOceanBaseVectorStore(t *testing.T) {
	storagetest.Run(t, setupOceanBaseTest)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorToString(nil))
	assert.Equal(t, "[0.1,-2,3e-07]", vectorToString([]float64{0.1, -2, 3e-7}))

	v, err := stringToVector(" [0.1, -2,3e-07] ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -2, 3e-7}, v)

	v, err = stringToVector("[]")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = stringToVector("[1,abc]")
	assert.Error(t, err)
}

func TestBuildWhereClause(t *testing.T) {
	clause, args := buildWhereClause("t1", "planner")
	assert.Equal(t, "WHERE tenant_id = ? AND agent_id = ?", clause)
	assert.Equal(t, []interface{}{"t1", "planner"}, args)
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{Host: "ob", Port: 2881, User: "root@test", Password: "pw", DBName: "recall"}
	assert.Equal(t, "root@test:pw@tcp(ob:2881)/recall?parseTime=true&loc=UTC", cfg.DSN())
}

func TestGenerateHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", generateHash("hello"))
	assert.NotEqual(t, generateHash("a"), generateHash("b"))
}
