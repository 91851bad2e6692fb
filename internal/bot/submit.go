package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/internal/pending"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

func (e *Engine) handleModalSubmit(ctx context.Context, ev *Event) error {
	owner, err := e.requireOwner(ctx, ev)
	if err != nil {
		return err
	}
	values := ledger.CleanFields(ev.Fields)

	switch ev.CustomID {
	case notice.ModalAdjust:
		return e.submitAdjustment(ctx, ev, owner, values)
	case notice.ModalRegisterFarm:
		return e.submitTransaction(ctx, ev, owner, ledger.KindRegister, ledger.CategoryFarm, values)
	case notice.ModalProduction:
		return e.submitTransaction(ctx, ev, owner, ledger.KindProduce, ledger.CategoryProduction, values)
	default:
		return fmt.Errorf("unknown modal %q", ev.CustomID)
	}
}

// submitAdjustment applies signed quantities to the owner's farm stock at
// once. The stock write and the ADJUSTMENT record are stored together.
func (e *Engine) submitAdjustment(ctx context.Context, ev *Event, owner *ledger.Owner, values map[string]string) error {
	if len(values) == 0 {
		return e.fail(ctx, ev, notice.Error("Dados Vazios", "Preencha pelo menos um item. Use valores negativos para subtrair."),
			ledger.ValidationErrors{ledger.MsgFillOneItem})
	}
	items, err := ledger.ParseLineItems(values)
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Dados Inválidos", err.Error()), ledger.ValidationErrors{err.Error()})
	}

	unlock := e.locks.Lock(owner.ID)
	current, err := e.store.GetOwner(ctx, owner.ID)
	var txID int64
	if err == nil {
		farm := ledger.ApplyDelta(current.FarmStock, items, ledger.Add)
		txID, err = e.store.RecordAdjustment(ctx, &ledger.Transaction{
			Kind:          ledger.KindAdjust,
			ExecutorID:    ev.UserID,
			TargetOwnerID: current.ID,
			LineItems:     items,
		}, farm, current.ProductionStock)
	}
	unlock()
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Erro no Ajuste", "Não foi possível atualizar o estoque no banco de dados."),
			fmt.Errorf("adjust stock of %s: %w", owner.ID, err))
	}

	e.logger.Info("stock adjusted",
		zap.Int64("transaction_id", txID),
		zap.String("owner_id", current.ID),
		zap.String("executor_id", ev.UserID))

	e.post(ctx, ev.ChannelID, notice.Of(notice.Adjusted(txID, ownerTag(current), current.ID, items)))
	e.refreshPanel(ctx, ev, ownerTag(current), current.ChannelID)
	return nil
}

// submitTransaction records a PENDING transaction and asks the submitter
// whether a proof will be attached. Stocks change only on finalize.
func (e *Engine) submitTransaction(ctx context.Context, ev *Event, owner *ledger.Owner, kind ledger.Kind, category ledger.Category, values map[string]string) error {
	rules, err := e.settings.ItemRules(ctx, category)
	if err != nil {
		return e.configFailure(ctx, ev, category, err)
	}

	known := make(map[string]string, len(values))
	for id, v := range values {
		if _, ok := rules.Lookup(id); ok {
			known[id] = v
		}
	}
	if errs := ledger.Validate(known, rules.Rules); len(errs) > 0 {
		return e.fail(ctx, ev, notice.Error("Dados Inválidos", strings.Join(errs, "\n")), errs)
	}
	items, err := ledger.ParseLineItems(known)
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Dados Inválidos", err.Error()), ledger.ValidationErrors{err.Error()})
	}

	tx := &ledger.Transaction{
		Kind:          kind,
		ExecutorID:    ev.UserID,
		TargetOwnerID: owner.ID,
		LineItems:     items,
		ProofStatus:   ledger.ProofStatusPending,
	}
	txID, err := e.store.AddTransaction(ctx, tx)
	if err != nil {
		return e.fail(ctx, ev, notice.Error("Erro no Log", "Não foi possível criar o registro da transação. Tente novamente."), err)
	}

	e.proofs.Put(pending.Entry{
		TransactionID: txID,
		SubmitterID:   ev.UserID,
		TargetOwnerID: owner.ID,
		Kind:          kind,
		LineItems:     items,
		ChannelID:     ev.ChannelID,
		CreatedAt:     tx.CreatedAt,
	})

	ref, err := e.messenger.Send(ctx, ev.ChannelID, notice.ProofPrompt(txID, kind, items))
	if err != nil {
		// An attachment may already have finalized the entry while the send
		// was failing; its status is terminal then and must stay.
		if _, ok := e.proofs.Take(txID); ok {
			if serr := e.store.UpdateTransactionStatus(ctx, txID, ledger.ProofStatusSendFailed, nil); serr != nil {
				e.logger.Error("failed to mark transaction SEND_FAILED",
					zap.Int64("transaction_id", txID), zap.Error(serr))
			}
		} else {
			e.logger.Warn("proof prompt failed after the transaction was settled",
				zap.Int64("transaction_id", txID), zap.Error(err))
		}
		return e.fail(ctx, ev, notice.Error("Erro Interno", "Falha ao construir a mensagem de prova. Contate o administrador."),
			fmt.Errorf("send proof prompt %d: %w", txID, err))
	}
	e.proofs.SetPromptRef(txID, ref)

	e.logger.Info("transaction pending proof",
		zap.Int64("transaction_id", txID),
		zap.String("kind", string(kind)),
		zap.String("owner_id", owner.ID))
	return nil
}
