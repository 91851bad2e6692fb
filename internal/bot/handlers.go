package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/finalize"
	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

const (
	msgPanelCreated      = "✅ Painel de Controle criado com sucesso no canal! Você foi registrado como o Dono deste estoque."
	msgNoPanel           = "Você não é o dono do Painel de Controle neste canal. Use `/painel` para criar o seu."
	msgProofExpired      = "Esta sessão de prova expirou ou não pertence a você."
	msgModalExpired      = "A sessão para este modal expirou. Tente a ação gerencial novamente."
	msgRegisteredNoProof = "Transação registrada com sucesso (SEM PROVA)."
	msgFinalizeFailed    = "A transação falhou no processamento final. O registro não foi concluído."
)

// respond answers ev: interactions get a private reply, chat messages a post
// in the same channel.
func (e *Engine) respond(ctx context.Context, ev *Event, msg notice.Message) error {
	if ev.InteractionID != "" {
		return e.messenger.Reply(ctx, ev.InteractionID, msg)
	}
	_, err := e.messenger.Send(ctx, ev.ChannelID, msg)
	return err
}

// fail shows n to the user and returns cause.
func (e *Engine) fail(ctx context.Context, ev *Event, n notice.Notice, cause error) error {
	if err := e.respond(ctx, ev, notice.Of(n)); err != nil {
		e.logger.Warn("failed to deliver error notice", zap.String("title", n.Title), zap.Error(err))
	}
	return cause
}

// post sends msg to channelID; delivery failures are logged only.
func (e *Engine) post(ctx context.Context, channelID string, msg notice.Message) {
	if _, err := e.messenger.Send(ctx, channelID, msg); err != nil {
		e.logger.Warn("failed to send message", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (e *Engine) deleteMessage(ctx context.Context, channelID, ref string) {
	if channelID == "" || ref == "" {
		return
	}
	if err := e.messenger.Delete(ctx, channelID, ref); err != nil {
		e.logger.Debug("failed to delete message", zap.String("channel_id", channelID), zap.String("ref", ref), zap.Error(err))
	}
}

// refreshPanel posts a fresh panel at the bottom of the owner's channel.
func (e *Engine) refreshPanel(ctx context.Context, ev *Event, ownerTag, channelID string) {
	if channelID == "" {
		return
	}
	e.post(ctx, channelID, notice.Panel(ownerTag, ev.GuildIconURL))
}

func ownerTag(o *ledger.Owner) string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.ID
}

func resultTag(r *finalize.Result) string {
	if r.OwnerDisplayName != "" {
		return r.OwnerDisplayName
	}
	return r.OwnerID
}

// requireOwner loads the acting user's panel owner record.
func (e *Engine) requireOwner(ctx context.Context, ev *Event) (*ledger.Owner, error) {
	owner, err := e.store.GetOwner(ctx, ev.UserID)
	if err == nil {
		return owner, nil
	}
	if ledger.IsNotFound(err) {
		return nil, e.fail(ctx, ev, notice.Error("Sem Painel", msgNoPanel), ErrNoPanel)
	}
	return nil, e.fail(ctx, ev, notice.Error("Erro de Dados", "Não foi possível carregar o dono do painel."),
		fmt.Errorf("load owner %s: %w", ev.UserID, err))
}

// configFailure reports an unreadable or empty item list.
func (e *Engine) configFailure(ctx context.Context, ev *Event, category ledger.Category, err error) error {
	var missing *ledger.ConfigMissingError
	if errors.As(err, &missing) {
		label := strings.Replace(string(category.ConfigKey()), "_", " ", 1)
		return e.fail(ctx, ev, notice.Error("Configuração Faltando",
			fmt.Sprintf("Nenhum item de %s encontrado no banco de dados.", label)), err)
	}
	return e.fail(ctx, ev, notice.Error("Erro de Dados", "Não foi possível carregar a configuração de itens."), err)
}

// isManager reports whether the member holds a manager role. Unreadable
// role configuration denies access.
func (e *Engine) isManager(ctx context.Context, ev *Event) (bool, error) {
	roles, err := e.settings.ManagerRoles(ctx)
	if err != nil {
		return false, err
	}
	return roles.Allows(ev.MemberRoleIDs), nil
}

func (e *Engine) handleCommand(ctx context.Context, ev *Event) error {
	if ev.Name != notice.CommandPanel {
		return fmt.Errorf("unknown command %q", ev.Name)
	}

	tag := ev.userName()
	if err := e.store.RegisterOwner(ctx, ev.UserID, ev.ChannelID, tag); err != nil {
		return e.fail(ctx, ev, notice.Error("Erro no DB", "Não foi possível registrar o dono e o canal no banco de dados."), err)
	}
	if _, err := e.messenger.Send(ctx, ev.ChannelID, notice.Panel(tag, ev.GuildIconURL)); err != nil {
		return e.fail(ctx, ev, notice.Error("Erro Crítico", "Ocorreu um erro ao tentar publicar o painel no canal."),
			fmt.Errorf("send panel: %w", err))
	}

	e.logger.Info("panel created",
		zap.String("owner_id", ev.UserID),
		zap.String("channel_id", ev.ChannelID))
	return e.respond(ctx, ev, notice.Message{Content: msgPanelCreated, Ephemeral: true})
}

func (e *Engine) handleButton(ctx context.Context, ev *Event) error {
	id := ev.CustomID

	// Proof, modal hand-off and stock query controls skip the owner check.
	if decision, txID, ok := notice.ParseProofControlID(id); ok {
		if decision == notice.ProofNo {
			return e.declineProof(ctx, ev, txID)
		}
		return e.acceptProof(ctx, ev, txID)
	}
	if strings.HasPrefix(id, "proof_") {
		return e.fail(ctx, ev, notice.SessionExpired(msgProofExpired), ErrSessionExpired)
	}
	if modalID, ok := notice.ParseOpenModalID(id); ok {
		return e.openCachedModal(ctx, ev, modalID)
	}
	if id == notice.ControlQueryStock {
		manager, err := e.isManager(ctx, ev)
		if err != nil {
			e.logger.Warn("manager roles unavailable", zap.Error(err))
		}
		return e.respond(ctx, ev, notice.StockQuery(manager))
	}

	if _, err := e.requireOwner(ctx, ev); err != nil {
		return err
	}

	if _, gated := e.gated[id]; gated {
		e.gate.Begin(ev.UserID, id)
		return e.respond(ctx, ev, notice.Message{
			Notices:   []notice.Notice{notice.AuthRequired(e.gate.TTL())},
			Ephemeral: true,
		})
	}

	switch id {
	case notice.ControlRegisterFarm:
		rules, err := e.settings.ItemRules(ctx, ledger.CategoryFarm)
		if err != nil {
			return e.configFailure(ctx, ev, ledger.CategoryFarm, err)
		}
		modal := notice.TransactionModal(notice.ModalRegisterFarm, "REGISTRO DE ENTRADA FARM", rules.Rules)
		return e.messenger.ShowModal(ctx, ev.InteractionID, modal)
	default:
		return fmt.Errorf("unknown control %q", id)
	}
}

func (e *Engine) openCachedModal(ctx context.Context, ev *Event, modalID string) error {
	modal, ok := e.modals.take(ev.UserID, modalID)
	if !ok {
		return e.fail(ctx, ev, notice.SessionExpired(msgModalExpired), ErrSessionExpired)
	}
	if err := e.messenger.ShowModal(ctx, ev.InteractionID, modal); err != nil {
		return fmt.Errorf("show modal %s: %w", modalID, err)
	}
	e.deleteMessage(ctx, ev.ChannelID, ev.MessageID)
	return nil
}

// declineProof finalizes a pending transaction without proof.
func (e *Engine) declineProof(ctx context.Context, ev *Event, txID int64) error {
	entry, ok := e.proofs.TakeFor(txID, ev.UserID)
	if !ok {
		return e.fail(ctx, ev, notice.SessionExpired(msgProofExpired), ErrSessionExpired)
	}

	owner, err := e.store.GetOwner(ctx, entry.TargetOwnerID)
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Erro de Dados", "Dono não encontrado no DB."),
			fmt.Errorf("load owner %s for transaction %d: %w", entry.TargetOwnerID, txID, err))
	}

	result, err := e.finalizer.Finalize(ctx, entry, ledger.ProofStatusWithoutProof, nil, owner, finalize.Origin{
		ChannelID:    ev.ChannelID,
		ExecutorName: ev.userName(),
	})
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Erro Crítico", msgFinalizeFailed), err)
	}

	e.deletePrompt(ctx, ev, entry.ChannelID, entry.PromptRef)
	e.refreshPanel(ctx, ev, resultTag(result), result.ChannelID)
	return e.respond(ctx, ev, notice.Message{Content: msgRegisteredNoProof, Ephemeral: true})
}

// acceptProof turns the prompt into the attachment-collection state. The
// entry stays cached until an attachment or a decline arrives.
func (e *Engine) acceptProof(ctx context.Context, ev *Event, txID int64) error {
	entry, ok := e.proofs.Peek(txID, ev.UserID)
	if !ok {
		return e.fail(ctx, ev, notice.SessionExpired(msgProofExpired), ErrSessionExpired)
	}

	channelID, ref := promptLocation(ev, entry.ChannelID, entry.PromptRef)
	if err := e.messenger.Edit(ctx, channelID, ref, notice.AwaitingAttachment(txID)); err != nil {
		return e.fail(ctx, ev, notice.Error("Erro Interno", "Falha ao processar dados de prova para edição."),
			fmt.Errorf("edit proof prompt %d: %w", txID, err))
	}
	return nil
}

// promptLocation prefers the recorded prompt, falling back to the message
// the control was clicked on.
func promptLocation(ev *Event, channelID, ref string) (string, string) {
	if channelID == "" {
		channelID = ev.ChannelID
	}
	if ref == "" {
		ref = ev.MessageID
	}
	return channelID, ref
}

func (e *Engine) deletePrompt(ctx context.Context, ev *Event, channelID, ref string) {
	channelID, ref = promptLocation(ev, channelID, ref)
	e.deleteMessage(ctx, channelID, ref)
}

func (e *Engine) handleSelect(ctx context.Context, ev *Event) error {
	if ev.CustomID != notice.SelectStockQuery {
		return fmt.Errorf("unknown select %q", ev.CustomID)
	}
	if len(ev.Values) == 0 {
		return fmt.Errorf("select %s carried no value", ev.CustomID)
	}

	owner, err := e.requireOwner(ctx, ev)
	if err != nil {
		return err
	}

	switch ev.Values[0] {
	case notice.OptionStockOwn:
		stock := notice.Stock(notice.ScopeChannel, owner.FarmStock, ev.userName())
		if err := e.respond(ctx, ev, notice.Message{Notices: []notice.Notice{stock}, Ephemeral: true}); err != nil {
			return err
		}
		e.refreshPanel(ctx, ev, ownerTag(owner), owner.ChannelID)
		return nil

	case notice.OptionStockAll:
		manager, err := e.isManager(ctx, ev)
		if err != nil {
			return e.fail(ctx, ev, notice.Error("Erro de Dados", "Não foi possível carregar os cargos gerenciais."), err)
		}
		if !manager {
			return e.fail(ctx, ev, notice.Error("Acesso Negado", "Você não tem permissão gerencial para esta consulta."), ErrAccessDenied)
		}

		owners, err := e.store.ListOwners(ctx)
		if err != nil {
			return e.fail(ctx, ev, notice.Error("Erro de Dados", "Não foi possível carregar os estoques."), err)
		}
		stocks := make([]ledger.Stock, 0, len(owners))
		for _, o := range owners {
			stocks = append(stocks, o.FarmStock)
		}
		total := notice.Stock(notice.ScopeGeneral, ledger.SumStocks(stocks...), "")
		return e.respond(ctx, ev, notice.Message{Notices: []notice.Notice{total}, Ephemeral: true})

	default:
		return fmt.Errorf("unknown stock query option %q", ev.Values[0])
	}
}
