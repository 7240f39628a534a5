package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"SIFT", SIFT},
		{"sift", SIFT},
		{" ORB ", ORB},
		{"Harris", Harris},
		{"HARRIS", Harris},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMethod_Unsupported(t *testing.T) {
	for _, in := range []string{"", "SURF", "harris-laplace"} {
		_, err := ParseMethod(in)
		assert.Truef(t, errors.Is(err, ErrUnsupportedMethod), "ParseMethod(%q) error = %v", in, err)
	}
}

func TestMethod_Properties(t *testing.T) {
	assert.Equal(t, NormL2, SIFT.Norm())
	assert.Equal(t, NormHamming, ORB.Norm())
	assert.Equal(t, NormNone, Harris.Norm())

	assert.True(t, SIFT.HasDescriptors())
	assert.True(t, ORB.HasDescriptors())
	assert.False(t, Harris.HasDescriptors())

	assert.Equal(t, FloatDescriptor, SIFT.DescriptorKind())
	assert.Equal(t, BinaryDescriptor, ORB.DescriptorKind())
	assert.Equal(t, NoDescriptor, Harris.DescriptorKind())

	assert.False(t, Method("SURF").Valid())
}

func TestMethods(t *testing.T) {
	infos := Methods()
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.True(t, info.Name.Valid())
		assert.NotEmpty(t, info.Description)
		assert.NotEmpty(t, info.Reference)
		assert.Equal(t, info.Name.HasDescriptors(), info.Descriptors)
	}
}
