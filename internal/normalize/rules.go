package normalize

import (
	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
)

// domainRules run after field coercion and may adjust fields that depend on
// each other.
var domainRules = map[constants.Domain]func(fields map[string]any, rep *report){
	constants.DomainReceipt: receiptSign,
}

// receiptSign keeps the amount sign and the transaction type consistent. A
// missing type is derived from the sign; an explicit type fixes the sign.
func receiptSign(fields map[string]any, rep *report) {
	amount, _ := fields["amount"].(float64)
	if rep.defaulted["type"] {
		if amount > 0 {
			fields["type"] = string(constants.TransactionIncome)
		} else {
			fields["type"] = string(constants.TransactionExpense)
		}
		return
	}
	switch fields["type"] {
	case string(constants.TransactionExpense):
		if amount > 0 {
			fields["amount"] = -amount
		}
	case string(constants.TransactionIncome):
		if amount < 0 {
			fields["amount"] = -amount
		}
	}
}
