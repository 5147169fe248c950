package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/example/customer/domain/entity"
)

func TestProcessIsIdentity(t *testing.T) {
	p := NewCustomerProcessor()
	ctx := context.Background()
	in := &entity.Customer{ID: 42, FirstName: "Ada", Country: "UK"}
	want := *in

	once, err := p.Process(ctx, in)
	require.NoError(t, err)
	twice, err := p.Process(ctx, once)
	require.NoError(t, err)

	assert.Same(t, in, once)
	assert.Same(t, in, twice)
	assert.Equal(t, want, *twice)
}
