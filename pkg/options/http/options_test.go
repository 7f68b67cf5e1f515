package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Validate())
	assert.Equal(t, ":8000", o.Addr)
}

func TestValidateCollectsErrors(t *testing.T) {
	o := &Options{Mode: "prod"}
	assert.Len(t, o.Validate(), 4)
}
