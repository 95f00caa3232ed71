package all

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"daops/internal/fixstore"
)

func TestAllKindsRegistered(t *testing.T) {
	kinds := fixstore.Kinds()
	for _, k := range []string{"dir", "http", "memory", "mssql", "mysql", "postgres", "sqlite"} {
		assert.Contains(t, kinds, k)
	}
}
