package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/babyjub"
)

func TestStore(t *testing.T) {
	s := Store{Dir: filepath.Join(t.TempDir(), "wallets")}
	addr := common.HexToAddress("0x0000000000000000000000000000000000000002")

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	w, err := s.Create("bob", addr)
	require.NoError(t, err)
	_, err = s.Create("bob", addr)
	assert.ErrorIs(t, err, ErrWalletExists)
	_, err = s.Create("../evil", addr)
	assert.Error(t, err)

	got, err := s.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, addr, got.Address)
	assert.Equal(t, 0, w.Keys.Private.Cmp(got.Keys.Private))
	assert.True(t, w.Keys.Public.Equal(got.Keys.Public))

	pk, err := babyjub.Unpack(got.PackedPublicKey())
	require.NoError(t, err)
	assert.True(t, pk.Equal(w.Keys.Public))

	_, err = s.Create("alice", addr)
	require.NoError(t, err)
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	_, err = s.Load("carol")
	assert.ErrorIs(t, err, ErrWalletNotFound)

	info, err := os.Stat(filepath.Join(s.Dir, "bob_wallet.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadWalletRejectsTamperedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x_wallet.json")
	doc := `{"name":"x","address":"0x0000000000000000000000000000000000000001",
	"keys":{"privateKey":"5","publicKey":["1","2"]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	_, err := LoadWallet(path)
	assert.Error(t, err)
}
