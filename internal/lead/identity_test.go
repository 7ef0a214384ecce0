package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateIdentityRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := AllocateIdentity()
		assert.GreaterOrEqual(t, id, syntheticBase)
		assert.Less(t, id, syntheticBase+syntheticSpan)
		assert.True(t, IsSynthetic(id))
	}
}

func TestIsSynthetic(t *testing.T) {
	assert.False(t, IsSynthetic(42))
	assert.False(t, IsSynthetic(1<<52))
	assert.True(t, IsSynthetic(syntheticBase))
}
