package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

func openTestStore(t *testing.T, sealer *Sealer) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), sealer)
	require.NoError(t, err)
	return st
}

func TestPutGetDelete(t *testing.T) {
	st := openTestStore(t, nil)

	require.NoError(t, st.Put(Namespace, "k", []byte("v")))

	got, ok, err := st.Get(Namespace, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, st.Delete(Namespace, "k"))
	_, ok, err = st.Get(Namespace, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	st := openTestStore(t, nil)

	_, ok, err := st.Get(Namespace, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	st := openTestStore(t, nil)
	require.NoError(t, st.Delete(Namespace, "missing"))
}

func TestJSONRoundTripCartSlice(t *testing.T) {
	st := openTestStore(t, nil)

	v := int64(3)
	in := []models.CartItem{
		{ItemRef: models.ItemRef{FoodID: 1}, FoodName: "Phở bò", Price: 50000, Quantity: 2},
		{ItemRef: models.ItemRef{FoodID: 2, VariantID: &v}, FoodName: "Cà phê sữa", Price: 30000, Quantity: 1},
	}
	require.NoError(t, st.PutJSON(Namespace, KeyCart, in))

	var out []models.CartItem
	ok, err := st.GetJSON(Namespace, KeyCart, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)
}

func TestJSONRoundTripFavorites(t *testing.T) {
	st := openTestStore(t, nil)

	in := []models.FavoriteEntry{
		{ItemRef: models.ItemRef{FoodID: 7}},
		{ItemRef: models.ItemRef{FoodID: 9}},
	}
	require.NoError(t, st.PutJSON(Namespace, KeyFavorites, in))

	var out []models.FavoriteEntry
	ok, err := st.GetJSON(Namespace, KeyFavorites, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)
}

func TestSealedRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	sealer, err := NewSealer(key)
	require.NoError(t, err)
	st := openTestStore(t, sealer)

	require.NoError(t, st.PutSealed(Namespace, KeyAccessToken, []byte("secret-token")))

	// The raw row must not contain the plaintext.
	raw, ok, err := st.Get(Namespace, KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, string(raw), "secret-token")

	plain, ok, err := st.GetSealed(Namespace, KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("secret-token"), plain)
}

func TestSealerRejectsBadKeyLength(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	require.Error(t, err)
}

func TestUnsealCorruptValueFails(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	sealer, err := NewSealer(key)
	require.NoError(t, err)
	st := openTestStore(t, sealer)

	require.NoError(t, st.Put(Namespace, KeyAccessToken, []byte("not sealed at all, just junk bytes")))

	_, _, err = st.GetSealed(Namespace, KeyAccessToken)
	require.Error(t, err)
}

func TestChangedSince(t *testing.T) {
	st := openTestStore(t, nil)

	before := time.Now().UTC().Add(-time.Minute)
	changed, err := st.ChangedSince(Namespace, before)
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, st.Put(Namespace, "k", []byte("v")))

	changed, err = st.ChangedSince(Namespace, before)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = st.ChangedSince(Namespace, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.False(t, changed)
}
