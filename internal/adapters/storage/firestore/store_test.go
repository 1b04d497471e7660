package firestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrivateKey(t *testing.T) {
	in := `{"private_key":"-----BEGIN KEY-----\\nabc\\n-----END KEY-----\\n"}`
	want := `{"private_key":"-----BEGIN KEY-----\nabc\n-----END KEY-----\n"}`
	assert.Equal(t, want, normalizePrivateKey(in))
}

func TestNormalizePrivateKeyLeavesValidJSONAlone(t *testing.T) {
	in := `{"private_key":"line1\nline2"}`
	assert.Equal(t, in, normalizePrivateKey(in))
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := NewStore(context.Background(), "", "")
	require.Error(t, err)
}
