package notice

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

var now = time.Now

// MaxModalInputs is the platform limit of text inputs per modal.
const MaxModalInputs = 5

// AutoExpire is how long short confirmation notices stay visible.
const AutoExpire = 5 * time.Second

// ItemLabel turns an item id into its display label ("farinha_de_trigo" → "FARINHA DE TRIGO").
func ItemLabel(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "_", " "))
}

// formatItems renders one "**LABEL**: qty" line per key.
func formatItems(keys []string, qty func(string) string) string {
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("**%s**: %s", ItemLabel(k), qty(k)))
	}
	return strings.Join(lines, "\n")
}

// LineItemsText renders transaction line items, "N/A" when empty.
func LineItemsText(items ledger.LineItems) string {
	if len(items) == 0 {
		return "N/A"
	}
	return formatItems(items.Keys(), func(k string) string { return ledger.FormatQuantity(items[k]) })
}

// StockText renders a stock, with a placeholder when empty.
func StockText(stock ledger.Stock) string {
	if len(stock) == 0 {
		return "Nenhum item em estoque registrado."
	}
	return formatItems(stock.Keys(), func(k string) string { return ledger.FormatQuantity(stock[k]) })
}

// Error is the generic failure notice.
func Error(title, description string) Notice {
	return Notice{
		Title:       "❌ " + title,
		Description: description,
		Category:    CategoryError,
		Timestamp:   now(),
	}
}

// Success announces a finalized REGISTER or PRODUCE transaction.
func Success(kind ledger.Kind, txID int64, executor string, items ledger.LineItems, proofURL *string) Notice {
	proof := "Nenhuma prova anexada (Registro SEM PROVA)."
	if proofURL != nil && *proofURL != "" {
		proof = "Prova anexada: " + *proofURL
	}
	return Notice{
		Title:       fmt.Sprintf("✅ Transação #%d - %s CONCLUÍDA", txID, kind.Label()),
		Description: fmt.Sprintf("A transação foi registrada com sucesso por **%s**.", executor),
		Fields: []Field{
			{Name: "Itens Registrados:", Value: LineItemsText(items)},
			{Name: "Comprovação", Value: proof, Inline: true},
		},
		Category:  CategorySuccess,
		Timestamp: now(),
		Footer:    "Finalizada por: " + executor,
	}
}

// ProofPending tells the submitter the transaction waits for a proof decision.
func ProofPending(txID int64, kind ledger.Kind, items ledger.LineItems) Notice {
	return Notice{
		Title: fmt.Sprintf("⚠️ Transação #%d Pendente de Prova", txID),
		Description: fmt.Sprintf("Sua transação de **%s** foi registrada e aguarda a prova. "+
			"Por favor, **envie a imagem de comprovação** nesta conversa.", kind.Label()),
		Fields:    []Field{{Name: "Itens Registrados:", Value: LineItemsText(items)}},
		Category:  CategoryWarning,
		Timestamp: now(),
	}
}

// ProofPrompt is the prompt with both proof controls.
func ProofPrompt(txID int64, kind ledger.Kind, items ledger.LineItems) Message {
	return Message{
		Notices: []Notice{ProofPending(txID, kind, items)},
		Rows: []Row{{Controls: []Control{
			{ID: ProofControlID(ProofYes, txID), Label: "Sim, com prova", Style: StyleSuccess},
			{ID: ProofControlID(ProofNo, txID), Label: "Não, registrar sem prova", Style: StyleSecondary},
		}}},
	}
}

// AwaitingAttachment replaces the prompt once the submitter chose to attach a proof.
// Only the decline control remains.
func AwaitingAttachment(txID int64) Message {
	return Message{
		Notices: []Notice{{
			Title: fmt.Sprintf("⚠️ Transação #%d Pendente de Prova", txID),
			Description: "**Aguardando Anexo:** Por favor, anexe a imagem/prova no chat **agora**. " +
				"**Se não conseguir, clique no botão \"Não, registrar sem prova\"**.",
			Category:  CategoryWarning,
			Timestamp: now(),
			Footer:    "Aguardando imagem...",
		}},
		Rows: []Row{{Controls: []Control{
			{ID: ProofControlID(ProofNo, txID), Label: "Não, registrar sem prova", Style: StyleSecondary},
		}}},
	}
}

// StockScope selects the stock overview title.
type StockScope int

const (
	ScopeChannel StockScope = iota
	ScopeGeneral
)

// Stock is the stock overview notice.
func Stock(scope StockScope, stock ledger.Stock, ownerTag string) Notice {
	title := "📦 ESTOQUE REAL GERAL"
	if scope == ScopeChannel {
		if ownerTag == "" {
			ownerTag = "N/A"
		}
		title = fmt.Sprintf("📦 ESTOQUE DO CANAL (%s)", ownerTag)
	}
	return Notice{
		Title:       title,
		Description: StockText(stock),
		Category:    CategoryInfo,
		Timestamp:   now(),
	}
}

// Panel is the owner's control surface.
func Panel(ownerTag, iconURL string) Message {
	if ownerTag == "" {
		ownerTag = "Admin"
	}
	return Message{
		Notices: []Notice{{
			Title: "🛠️ Painel da Tropa 🏆",
			Description: fmt.Sprintf("**Boas-vindas, %s**!\n\nEste é o seu painel de controle de operações. "+
				"Use os botões abaixo para registrar produção, ajustar estoque ou visualizar logs.\n\n"+
				"**Status:** 🟢 Online e Operacional.", ownerTag),
			Category:  CategoryPanel,
			Timestamp: now(),
			Footer:    "Canal associado a " + ownerTag,
			Thumbnail: iconURL,
		}},
		Rows: []Row{
			{Controls: []Control{
				{ID: ControlRegisterFarm, Label: "🌱 Registro Farm", Style: StyleSuccess},
				{ID: ControlProduction, Label: "🛠️ Registrar Produção", Style: StyleSuccess},
				{ID: ControlViewStock, Label: "📈 Visualizar Estoque", Style: StylePrimary},
			}},
			{Controls: []Control{
				{ID: ControlAdjustStock, Label: "📦 Ajuste Manual", Style: StylePrimary},
				{ID: ControlManagerLog, Label: "📜 Log Gerencial", Style: StyleSecondary},
			}},
		},
	}
}

// StockQuery is the select offered by the stock view. The general option is
// only listed for managers.
func StockQuery(manager bool) Message {
	options := []Option{{
		Label:       "Estoque do Meu Canal",
		Description: "Consulta o estoque do dono deste canal.",
		Value:       OptionStockOwn,
	}}
	if manager {
		options = append(options, Option{
			Label:       "Estoque Real Geral",
			Description: "Consulta o estoque FARM total de todos os canais (Acesso via Cargo).",
			Value:       OptionStockAll,
		})
	}
	return Message{
		Content:   "Escolha a opção de consulta:",
		Rows:      []Row{{Select: &Select{ID: SelectStockQuery, Placeholder: "Selecione o tipo de consulta...", Options: options}}},
		Ephemeral: true,
	}
}

// AuthRequired asks the user to type the manager key.
func AuthRequired(ttl time.Duration) Notice {
	return Notice{
		Title: "🔒 Autenticação Necessária",
		Description: fmt.Sprintf("Por favor, **digite a Chave de Acesso Gerencial** diretamente no chat "+
			"(sem comandos) nos próximos %d segundos.", int(ttl.Seconds())),
		Category:  CategoryWarning,
		Timestamp: now(),
		Footer:    "A senha é esperada na próxima mensagem. Apenas você verá a confirmação.",
	}
}

// AuthFailed reports a wrong manager key.
func AuthFailed() Notice {
	return Error("Autenticação Falhou", "Chave de acesso incorreta.")
}

// AuthSucceeded confirms manager access.
func AuthSucceeded() Notice {
	return Notice{
		Title:       "✅ Autenticação Sucedida",
		Description: "Acesso gerencial concedido. Iniciando ação...",
		Category:    CategorySuccess,
		Timestamp:   now(),
	}
}

// SessionExpired is shown for stale controls and missing cache entries.
func SessionExpired(description string) Notice {
	return Error("Sessão Expirada", description)
}

// Adjusted announces a manual stock adjustment.
func Adjusted(txID int64, ownerTag, ownerID string, items ledger.LineItems) Notice {
	return Notice{
		Title:       "🔧 AJUSTE MANUAL BEM-SUCEDIDO",
		Description: fmt.Sprintf("O estoque de **%s** (ID: %s) foi ajustado manualmente.", ownerTag, ownerID),
		Fields: []Field{
			{Name: "Transação ID", Value: fmt.Sprintf("#%d", txID), Inline: true},
			{Name: "Itens Ajustados", Value: LineItemsText(items)},
		},
		Category:  CategorySuccess,
		Timestamp: now(),
	}
}

// Log lists recent transactions. name resolves user ids to display names.
func Log(txs []*ledger.Transaction, name func(userID string) string) Notice {
	n := Notice{
		Title:       fmt.Sprintf("📜 LOGS RECENTES (Últimas %d Transações)", len(txs)),
		Description: "**Filtro:** Todas as transações.",
		Category:    CategorySuccess,
		Timestamp:   now(),
		Footer:      "Sistema de Controle",
	}
	if len(txs) == 0 {
		n.Fields = []Field{{Name: "Vazio", Value: "Nenhuma transação encontrada."}}
		return n
	}
	for _, tx := range txs {
		value := fmt.Sprintf("**Executado por**: %s\n**Status Prova**: %s\n%s",
			name(tx.ExecutorID), tx.ProofStatus, LineItemsText(tx.LineItems))
		if tx.ProofURL != nil {
			value += "\n**Prova**: " + *tx.ProofURL
		}
		n.Fields = append(n.Fields, Field{
			Name:  fmt.Sprintf("[#%d] %s - Alvo: %s", tx.ID, tx.Kind.Label(), name(tx.TargetOwnerID)),
			Value: value,
		})
	}
	return n
}

// TransactionModal builds a quantity form from item rules. Only the first
// MaxModalInputs rules get an input.
func TransactionModal(id, title string, rules []ledger.ItemRule) Modal {
	m := Modal{ID: id, Title: title}
	for i, rule := range rules {
		if i >= MaxModalInputs {
			break
		}
		m.Inputs = append(m.Inputs, TextInput{
			ID:          rule.ID,
			Label:       "Quantidade de " + rule.DisplayName(),
			Placeholder: "Digite a quantidade (ex: 500000)",
		})
	}
	return m
}

// OpenModal is the post-authentication message carrying the control that opens a cached modal.
func OpenModal(userTag, modalID, label string) Message {
	return Message{
		Content: fmt.Sprintf("**%s**, autenticação bem-sucedida! Clique no botão abaixo para abrir o modal de transação.", userTag),
		Rows: []Row{{Controls: []Control{
			{ID: OpenModalID(modalID), Label: label, Style: StylePrimary},
		}}},
	}
}
