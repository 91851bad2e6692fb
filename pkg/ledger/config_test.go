package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	t.Run("item rules keep order and optional bounds", func(t *testing.T) {
		raw := `[{"idInterno":"folhas","nome":"Folhas","multiplo":1},
		         {"idInterno":"dinheiro_limpo","nome":"Dinheiro Limpo","multiplo":4500,"min":4500}]`
		v, err := DecodeConfig(ConfigKeyFarmItems, []byte(raw))
		require.NoError(t, err)

		rules := v.(ItemRules)
		assert.Equal(t, CategoryFarm, rules.Category)
		require.Len(t, rules.Rules, 2)
		assert.Equal(t, "folhas", rules.Rules[0].ID)
		assert.False(t, rules.Rules[0].Min.Valid)
		assert.True(t, rules.Rules[1].Min.Valid)
		assert.True(t, dec("4500").Equal(rules.Rules[1].Min.Decimal))

		rule, ok := rules.Lookup("dinheiro_limpo")
		assert.True(t, ok)
		assert.Equal(t, "Dinheiro Limpo", rule.DisplayName())
	})

	t.Run("production key maps to production category", func(t *testing.T) {
		v, err := DecodeConfig(ConfigKeyProductionItems, []byte(`[{"idInterno":"farinha","multiplo":1}]`))
		require.NoError(t, err)
		assert.Equal(t, CategoryProduction, v.(ItemRules).Category)
	})

	t.Run("duplicate item ids are rejected", func(t *testing.T) {
		_, err := DecodeConfig(ConfigKeyFarmItems, []byte(`[{"idInterno":"a"},{"idInterno":"a"}]`))
		assert.ErrorContains(t, err, "duplicate item id")
	})

	t.Run("manager roles accept object and array forms", func(t *testing.T) {
		v, err := DecodeConfig(ConfigKeyManagerRoles, []byte(`{"nome":"Gerência","ids":["r1","r2"]}`))
		require.NoError(t, err)
		assert.Equal(t, ManagerRoles{Name: "Gerência", IDs: []string{"r1", "r2"}}, v)

		v, err = DecodeConfig(ConfigKeyManagerRoles, []byte(`["r3"]`))
		require.NoError(t, err)
		assert.True(t, v.(ManagerRoles).Allows([]string{"x", "r3"}))
		assert.False(t, v.(ManagerRoles).Allows([]string{"x"}))
	})

	t.Run("master key accepts bare and wrapped forms", func(t *testing.T) {
		v, err := DecodeConfig(ConfigKeyMasterKey, []byte(`"segredo"`))
		require.NoError(t, err)
		assert.Equal(t, MasterKey("segredo"), v)

		v, err = DecodeConfig(ConfigKeyMasterKey, []byte(`{"valor":"segredo"}`))
		require.NoError(t, err)
		assert.Equal(t, MasterKey("segredo"), v)
	})

	t.Run("null and empty values are missing", func(t *testing.T) {
		for _, raw := range []string{"", "null", `""`} {
			_, err := DecodeConfig(ConfigKeyMasterKey, []byte(raw))
			var missing *ConfigMissingError
			assert.True(t, errors.As(err, &missing), "raw %q", raw)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := DecodeConfig("OUTRA", []byte(`1`))
		assert.ErrorContains(t, err, "unknown configuration key")
	})
}

func TestEncodeConfig(t *testing.T) {
	data, err := json.Marshal(EncodeConfig(MasterKey("segredo")))
	require.NoError(t, err)
	assert.JSONEq(t, `"segredo"`, string(data))

	data, err = json.Marshal(EncodeConfig(ItemRules{Category: CategoryFarm}))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestSettings(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	settings := NewSettings(client)

	t.Run("missing item rules", func(t *testing.T) {
		_, err := settings.ItemRules(ctx, CategoryFarm)
		var missing *ConfigMissingError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, ConfigKeyFarmItems, missing.Key)
	})

	t.Run("empty item rules count as missing", func(t *testing.T) {
		require.NoError(t, settings.Set(ctx, ItemRules{Category: CategoryProduction}))
		_, err := settings.ItemRules(ctx, CategoryProduction)
		var missing *ConfigMissingError
		assert.True(t, errors.As(err, &missing))
	})

	t.Run("round trips item rules", func(t *testing.T) {
		require.NoError(t, settings.Set(ctx, ItemRules{
			Category: CategoryFarm,
			Rules:    []ItemRule{{ID: "folhas", Name: "Folhas", Multiple: dec("1")}},
		}))
		rules, err := settings.ItemRules(ctx, CategoryFarm)
		require.NoError(t, err)
		require.Len(t, rules.Rules, 1)
		assert.True(t, dec("1").Equal(rules.Rules[0].Multiple))
	})

	t.Run("missing manager roles yields none", func(t *testing.T) {
		roles, err := settings.ManagerRoles(ctx)
		require.NoError(t, err)
		assert.Empty(t, roles.IDs)
	})

	t.Run("master key is stored bare", func(t *testing.T) {
		require.NoError(t, client.SetConfig(ctx, ConfigKeyMasterKey, map[string]string{"valor": "legado"}))
		key, err := settings.MasterKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, MasterKey("legado"), key)

		require.NoError(t, settings.Set(ctx, key))
		raw, err := client.GetConfig(ctx, ConfigKeyMasterKey)
		require.NoError(t, err)
		assert.JSONEq(t, `"legado"`, string(raw))
	})
}
