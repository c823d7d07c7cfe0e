package contracts

import (
	"bytes"
	"encoding/json"

	"github.com/cpacia/iouledger/models"
)

const (
	ruleNotaryChangeShape     = "a notary change must consume one state and create one state"
	ruleNotaryChangeSameData  = "a notary change must not modify the state"
	ruleNotaryChangeNewNotary = "a notary change must assign a different notary"
	ruleNotaryChangeOldNotary = "a notary change must be finalized by the current notary"
)

func verifyNotaryChange(tx *models.Transaction, cmd models.Command) error {
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 1 {
		return reject(cmd.Type, ruleNotaryChangeShape)
	}
	in, out := tx.Inputs[0].State, tx.Outputs[0]

	inData, err := json.Marshal(in.Data)
	if err != nil {
		return reject(cmd.Type, ruleNotaryChangeSameData)
	}
	outData, err := json.Marshal(out.Data)
	if err != nil || !bytes.Equal(inData, outData) {
		return reject(cmd.Type, ruleNotaryChangeSameData)
	}
	if out.Notary == "" || out.Notary == in.Notary {
		return reject(cmd.Type, ruleNotaryChangeNewNotary)
	}
	if tx.Notary != in.Notary {
		return reject(cmd.Type, ruleNotaryChangeOldNotary)
	}
	return signedByAll(cmd, out.Data)
}
