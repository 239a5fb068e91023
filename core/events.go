package core

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// EventEmitter logs every engine event as an EVENT_JSON: line, the same
// convention the Rust prototype's log_utf8 special-case implements and
// that tenant-forwarded DexEvent payloads already use on the wire.
type EventEmitter struct{ log *logrus.Logger }

func NewEventEmitter(log *logrus.Logger) *EventEmitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EventEmitter{log: log}
}

type eventEnvelope struct {
	Standard string          `json:"standard"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

func (e *EventEmitter) emit(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		e.log.Warnf("event %s: marshal failed: %v", event, err)
		return
	}
	env := eventEnvelope{Standard: "dex-engine", Event: event, Data: raw}
	line, _ := json.Marshal(env)
	e.log.Infof("EVENT_JSON:%s", line)
}

func (e *EventEmitter) DexDeployed(dexID string, codeHash string) {
	e.emit("dex_deployed", map[string]string{"dex_id": dexID, "code_hash": codeHash})
}

func (e *EventEmitter) UserDeposit(account, asset, amount string) {
	e.emit("user_deposit", map[string]string{"account_id": account, "asset_id": asset, "amount": amount})
}

func (e *EventEmitter) Withdraw(from, to, asset, amount string) {
	metricWithdrawalsTotal.WithLabelValues("success").Inc()
	e.emit("withdraw", map[string]string{"from": from, "to": to, "asset_id": asset, "amount": amount})
}

func (e *EventEmitter) UserBalanceUpdate(account, asset, balance string) {
	e.emit("user_balance_update", map[string]string{"account_id": account, "asset_id": asset, "balance": balance})
}

func (e *EventEmitter) DexBalanceUpdate(dexID, asset, balance string) {
	e.emit("dex_balance_update", map[string]string{"dex_id": dexID, "asset_id": asset, "balance": balance})
}

func (e *EventEmitter) Swap(dexID, amountIn, amountOut, trader string) {
	metricSwapsTotal.Inc()
	e.emit("swap", map[string]string{"dex_id": dexID, "amount_in": amountIn, "amount_out": amountOut, "trader": trader})
}

func (e *EventEmitter) DexEvent(dexID, payload string) {
	metricDexCallsTotal.Inc()
	e.emit("dex_event", map[string]string{"dex_id": dexID, "payload": payload})
}

func (e *EventEmitter) Trade(payload any) {
	e.emit("trade", payload)
}

func (e *EventEmitter) AuthorizedKeyChanged(account, key string) {
	e.emit("authorized_key_changed", map[string]string{"account_id": account, "key": key})
}
