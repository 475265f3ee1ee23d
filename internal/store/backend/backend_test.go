package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/config"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
)

func TestOpenMemory(t *testing.T) {
	st, err := Open(context.Background(), config.Config{Store: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "sqlite"})
	assert.Error(t, err)
}
