package autoindexnode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeActiveAdvert(t *testing.T) {
	a := Advert{Active: true, Port: 49152, UID: "abc-123"}
	encoded := a.Encode()
	assert.Equal(t, "1:49152:abc-123", encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestEncodeDecodeProspectiveAdvert(t *testing.T) {
	a := Advert{Active: false, Capability: 4200000, UID: "xyz"}
	encoded := a.Encode()
	assert.Equal(t, "1:autoindexnode:4200000:xyz", encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode("garbage")
	assert.Error(t, err)
	_, err = Decode("1:autoindexnode:notanumber:uid")
	assert.Error(t, err)
}

func TestNewUIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewUID(), NewUID())
}
