package notice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

func TestProofControlIDs(t *testing.T) {
	tests := []struct {
		id       string
		decision ProofDecision
		txID     int64
		ok       bool
	}{
		{"proof_yes_12", ProofYes, 12, true},
		{"proof_no_7", ProofNo, 7, true},
		{"proof_no_", 0, 0, false},
		{"proof_yes_abc", 0, 0, false},
		{"proof_yes_-1", 0, 0, false},
		{"btn_producao", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			decision, txID, ok := ParseProofControlID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.decision, decision)
			assert.Equal(t, tt.txID, txID)
		})
	}

	assert.Equal(t, "proof_yes_3", ProofControlID(ProofYes, 3))
	assert.Equal(t, "proof_no_3", ProofControlID(ProofNo, 3))
}

func TestOpenModalID(t *testing.T) {
	id := OpenModalID(ModalAdjust)
	assert.Equal(t, "open_action_modal_modal_ajuste", id)

	modal, ok := ParseOpenModalID(id)
	assert.True(t, ok)
	assert.Equal(t, ModalAdjust, modal)

	_, ok = ParseOpenModalID("btn_producao")
	assert.False(t, ok)
}

func TestPanel(t *testing.T) {
	msg := Panel("", "https://cdn.example/icon.png")
	require.Len(t, msg.Rows, 2)

	var ids []string
	for _, row := range msg.Rows {
		for _, c := range row.Controls {
			ids = append(ids, c.ID)
		}
	}
	assert.Equal(t, []string{
		ControlRegisterFarm, ControlProduction, ControlViewStock,
		ControlAdjustStock, ControlManagerLog,
	}, ids)
	assert.Equal(t, "Canal associado a Admin", msg.Notices[0].Footer)
	assert.Equal(t, CategoryPanel, msg.Notices[0].Category)
}

func TestStockQuery(t *testing.T) {
	assert.Len(t, StockQuery(false).Rows[0].Select.Options, 1)

	options := StockQuery(true).Rows[0].Select.Options
	require.Len(t, options, 2)
	assert.Equal(t, OptionStockAll, options[1].Value)
}

func TestSuccess(t *testing.T) {
	items := ledger.LineItems{"farinha": decimal.RequireFromString("4500")}

	n := Success(ledger.KindProduce, 42, "Fulano", items, nil)
	assert.Equal(t, "✅ Transação #42 - PRODUCAO CONCLUÍDA", n.Title)
	assert.Equal(t, "**FARINHA**: 4.500", n.Fields[0].Value)
	assert.Contains(t, n.Fields[1].Value, "SEM PROVA")

	url := "https://cdn.example/p.png"
	n = Success(ledger.KindRegister, 43, "Fulano", items, &url)
	assert.Contains(t, n.Fields[1].Value, url)
}

func TestStockNotice(t *testing.T) {
	n := Stock(ScopeChannel, ledger.Stock{}, "")
	assert.Equal(t, "📦 ESTOQUE DO CANAL (N/A)", n.Title)
	assert.Equal(t, "Nenhum item em estoque registrado.", n.Description)

	n = Stock(ScopeGeneral, ledger.Stock{
		"folhas":           decimal.RequireFromString("2.5"),
		"farinha_de_trigo": decimal.RequireFromString("10"),
	}, "")
	assert.Equal(t, "📦 ESTOQUE REAL GERAL", n.Title)
	assert.Equal(t, "**FARINHA DE TRIGO**: 10\n**FOLHAS**: 2,5", n.Description)
}

func TestLog(t *testing.T) {
	name := func(id string) string { return "user-" + id }

	n := Log(nil, name)
	require.Len(t, n.Fields, 1)
	assert.Equal(t, "Vazio", n.Fields[0].Name)

	tx := &ledger.Transaction{
		ID: 5, Kind: ledger.KindAdjust, ExecutorID: "m1", TargetOwnerID: "u1",
		LineItems:   ledger.LineItems{"folhas": decimal.RequireFromString("-50")},
		ProofStatus: ledger.ProofStatusAdjustment,
	}
	n = Log([]*ledger.Transaction{tx}, name)
	require.Len(t, n.Fields, 1)
	assert.Equal(t, "[#5] AJUSTE - Alvo: user-u1", n.Fields[0].Name)
	assert.Contains(t, n.Fields[0].Value, "user-m1")
	assert.Contains(t, n.Fields[0].Value, "**FOLHAS**: -50")
}

func TestTransactionModal(t *testing.T) {
	var rules []ledger.ItemRule
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		rules = append(rules, ledger.ItemRule{ID: id})
	}
	m := TransactionModal(ModalRegisterFarm, "REGISTRO DE ENTRADA FARM", rules)
	require.Len(t, m.Inputs, MaxModalInputs)
	assert.Equal(t, "Quantidade de a", m.Inputs[0].Label)
	assert.False(t, m.Inputs[0].Required)
}

func TestAuthRequired(t *testing.T) {
	n := AuthRequired(60 * time.Second)
	assert.Contains(t, n.Description, "60 segundos")
}
