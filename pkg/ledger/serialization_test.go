package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toStringHash mimics what HGETALL returns for a hash written with HSET.
func toStringHash(h map[string]interface{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func TestOwnerHash(t *testing.T) {
	owner := &Owner{
		ID:              "u1",
		ChannelID:       "c1",
		DisplayName:     "Fulano#0001",
		FarmStock:       Stock{"folhas": dec("2.5")},
		ProductionStock: nil,
	}

	hash, err := OwnerToHash(owner)
	require.NoError(t, err)
	assert.Equal(t, "{}", hash["production_stock"])

	decoded, err := HashToOwner(toStringHash(hash))
	require.NoError(t, err)
	assert.Equal(t, "c1", decoded.ChannelID)
	assert.Equal(t, "Fulano#0001", decoded.DisplayName)
	assert.True(t, dec("2.5").Equal(decoded.FarmStock["folhas"]))
	assert.NotNil(t, decoded.ProductionStock)
	assert.Empty(t, decoded.ProductionStock)
}

func TestTransactionHash(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil proof url stays nil", func(t *testing.T) {
		tx := &Transaction{
			ID: 7, Kind: KindProduce, ExecutorID: "u1", TargetOwnerID: "u1",
			LineItems: LineItems{"farinha": dec("500")}, ProofStatus: ProofStatusPending, CreatedAt: created,
		}
		hash, err := TransactionToHash(tx)
		require.NoError(t, err)
		assert.Equal(t, "", hash["proof_url"])

		decoded, err := HashToTransaction(toStringHash(hash))
		require.NoError(t, err)
		assert.Equal(t, int64(7), decoded.ID)
		assert.Equal(t, KindProduce, decoded.Kind)
		assert.Nil(t, decoded.ProofURL)
		assert.True(t, created.Equal(decoded.CreatedAt))
		assert.True(t, dec("500").Equal(decoded.LineItems["farinha"]))
	})

	t.Run("proof url survives", func(t *testing.T) {
		url := "https://cdn.example/p.png"
		tx := &Transaction{ID: 8, Kind: KindRegister, ExecutorID: "u1", TargetOwnerID: "u1",
			ProofStatus: ProofStatusWithProof, ProofURL: &url, CreatedAt: created}
		hash, err := TransactionToHash(tx)
		require.NoError(t, err)

		decoded, err := HashToTransaction(toStringHash(hash))
		require.NoError(t, err)
		require.NotNil(t, decoded.ProofURL)
		assert.Equal(t, url, *decoded.ProofURL)
	})

	t.Run("rejects a missing id", func(t *testing.T) {
		_, err := HashToTransaction(map[string]string{"kind": "ADJUST"})
		assert.Error(t, err)
	})
}

func TestDecodeStock(t *testing.T) {
	stock, err := DecodeStock(`{"farinha":"10.5","folhas":3}`)
	require.NoError(t, err)
	assert.True(t, dec("10.5").Equal(stock["farinha"]))
	assert.True(t, dec("3").Equal(stock["folhas"]))

	_, err = DecodeStock("not json")
	assert.Error(t, err)
}
