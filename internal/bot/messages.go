package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/authgate"
	"github.com/dyluth/stockpanel/internal/finalize"
	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

// handleMessage covers plain chat messages: the manager key typed after a
// gated control, or a proof attachment.
func (e *Engine) handleMessage(ctx context.Context, ev *Event) error {
	if ev.Bot {
		return nil
	}
	if action, ok := e.gate.Consume(ev.UserID); ok {
		return e.authenticate(ctx, ev, action)
	}
	if len(ev.Attachments) == 0 {
		return nil
	}
	return e.attachProof(ctx, ev)
}

func (e *Engine) authenticate(ctx context.Context, ev *Event, action string) error {
	// The key never stays in the channel, right or wrong.
	defer e.deleteMessage(ctx, ev.ChannelID, ev.MessageID)

	secret, err := e.settings.MasterKey(ctx)
	if err != nil {
		var missing *ledger.ConfigMissingError
		if !errors.As(err, &missing) {
			return e.fail(ctx, ev, notice.Error("Erro de Dados", "Não foi possível verificar a chave de acesso."), err)
		}
		e.logger.Warn("master key not configured; rejecting authentication", zap.String("user_id", ev.UserID))
	}

	if !authgate.Check(ev.Content, string(secret)) {
		e.post(ctx, ev.ChannelID, notice.Expiring(notice.AutoExpire, notice.AuthFailed()))
		return fmt.Errorf("%w: action %s", ErrAuthFailed, action)
	}
	e.post(ctx, ev.ChannelID, notice.Expiring(notice.AutoExpire, notice.AuthSucceeded()))

	handler, ok := e.gated[action]
	if !ok {
		return fmt.Errorf("no handler for gated action %q", action)
	}
	e.logger.Info("manager access granted", zap.String("user_id", ev.UserID), zap.String("action", action))
	return handler(ctx, ev)
}

// attachProof finalizes the submitter's pending transaction with the first
// attachment. Only owners posting in their own channel are considered.
func (e *Engine) attachProof(ctx context.Context, ev *Event) error {
	owner, err := e.store.GetOwner(ctx, ev.UserID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load owner %s: %w", ev.UserID, err)
	}
	if owner.ChannelID != ev.ChannelID {
		return nil
	}

	// Removed before any store I/O so a duplicate message finds nothing.
	entry, ok := e.proofs.TakeMatching(ev.UserID, owner.ID)
	if !ok {
		return nil
	}

	result, err := e.finalizer.Finalize(ctx, entry, ledger.ProofStatusWithProof, ev.Attachments[0].URL, owner, finalize.Origin{
		ChannelID:    ev.ChannelID,
		ExecutorName: ev.userName(),
	})
	if err != nil {
		e.post(ctx, ev.ChannelID, notice.Of(notice.Error("Erro Crítico", msgFinalizeFailed)))
		return err
	}

	e.deleteMessage(ctx, entry.ChannelID, entry.PromptRef)
	e.refreshPanel(ctx, ev, resultTag(result), result.ChannelID)
	return nil
}

func (e *Engine) runManagerLog(ctx context.Context, ev *Event) error {
	txs, err := e.store.ListTransactions(ctx, ledger.TransactionFilter{Limit: ledger.DefaultListLimit})
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Erro no Log", "Não foi possível carregar as transações."), err)
	}

	names := make(map[string]string)
	owners, err := e.store.ListOwners(ctx)
	if err != nil {
		e.logger.Warn("owner names unavailable for log view", zap.Error(err))
	}
	for _, o := range owners {
		if o.DisplayName != "" {
			names[o.ID] = o.DisplayName
		}
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	_, err = e.messenger.Send(ctx, ev.ChannelID, notice.Message{
		Content: fmt.Sprintf("**%s**, Logs carregados:", ev.userName()),
		Notices: []notice.Notice{notice.Log(txs, name)},
	})
	return err
}

func (e *Engine) runAdjustModal(ctx context.Context, ev *Event) error {
	return e.offerModal(ctx, ev, ledger.CategoryFarm, notice.ModalAdjust,
		"AJUSTE MANUAL DE ESTOQUE", "Abrir Modal de ESTOQUE")
}

func (e *Engine) runProductionModal(ctx context.Context, ev *Event) error {
	return e.offerModal(ctx, ev, ledger.CategoryProduction, notice.ModalProduction,
		"REGISTRO DE PRODUÇÃO", "Abrir Modal de PRODUCAO")
}

// offerModal caches the modal for the user and posts the control that
// opens it; a modal can only be shown in answer to an interaction.
func (e *Engine) offerModal(ctx context.Context, ev *Event, category ledger.Category, modalID, title, label string) error {
	rules, err := e.settings.ItemRules(ctx, category)
	if err != nil {
		return e.configFailure(ctx, ev, category, err)
	}
	e.modals.put(ev.UserID, notice.TransactionModal(modalID, title, rules.Rules))

	if _, err := e.messenger.Send(ctx, ev.ChannelID, notice.OpenModal(ev.userName(), modalID, label)); err != nil {
		return fmt.Errorf("send open-modal control: %w", err)
	}
	return nil
}

func (e *Engine) runStockQuery(ctx context.Context, ev *Event) error {
	manager, err := e.isManager(ctx, ev)
	if err != nil {
		e.logger.Warn("manager roles unavailable", zap.Error(err))
	}
	msg := notice.StockQuery(manager)
	msg.Ephemeral = false
	_, err = e.messenger.Send(ctx, ev.ChannelID, msg)
	return err
}
