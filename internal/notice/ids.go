package notice

import (
	"fmt"
	"strconv"
	"strings"
)

// Control, select and modal identifiers exchanged with the gateway.
const (
	CommandPanel = "painel"

	ControlRegisterFarm = "btn_registro_farm"
	ControlProduction   = "btn_producao"
	ControlViewStock    = "btn_visualizar_estoque"
	ControlQueryStock   = "btn_consulta_estoque"
	ControlAdjustStock  = "btn_ajuste_estoque"
	ControlManagerLog   = "btn_log_gerencial"

	SelectStockQuery = "select_consulta_estoque"
	OptionStockOwn   = "consulta_canal"
	OptionStockAll   = "consulta_geral"

	ModalRegisterFarm = "modal_registro_farm"
	ModalProduction   = "modal_producao"
	ModalAdjust       = "modal_ajuste"

	openModalPrefix = "open_action_modal_"
	proofYesPrefix  = "proof_yes_"
	proofNoPrefix   = "proof_no_"
)

// OpenModalID is the control that opens a cached modal.
func OpenModalID(modalID string) string {
	return openModalPrefix + modalID
}

// ParseOpenModalID returns the modal id behind an open-modal control.
func ParseOpenModalID(id string) (string, bool) {
	if !strings.HasPrefix(id, openModalPrefix) {
		return "", false
	}
	return strings.TrimPrefix(id, openModalPrefix), true
}

// ProofDecision is the submitter's answer to the proof prompt.
type ProofDecision int

const (
	ProofYes ProofDecision = iota + 1
	ProofNo
)

// ProofControlID returns the control id for a decision on transaction txID.
func ProofControlID(d ProofDecision, txID int64) string {
	if d == ProofYes {
		return fmt.Sprintf("%s%d", proofYesPrefix, txID)
	}
	return fmt.Sprintf("%s%d", proofNoPrefix, txID)
}

// ParseProofControlID decodes proof_yes_<id> / proof_no_<id>.
func ParseProofControlID(id string) (ProofDecision, int64, bool) {
	var (
		decision ProofDecision
		rest     string
	)
	switch {
	case strings.HasPrefix(id, proofYesPrefix):
		decision, rest = ProofYes, strings.TrimPrefix(id, proofYesPrefix)
	case strings.HasPrefix(id, proofNoPrefix):
		decision, rest = ProofNo, strings.TrimPrefix(id, proofNoPrefix)
	default:
		return 0, 0, false
	}
	txID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || txID <= 0 {
		return 0, 0, false
	}
	return decision, txID, true
}
