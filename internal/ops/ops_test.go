package ops

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accountops/internal/account"
	"accountops/internal/config"
	"accountops/internal/engine"
	"accountops/internal/exchange"
	"accountops/internal/retry"
)

func TestSpendable(t *testing.T) {
	cases := []struct {
		balance    string
		configured string
		want       string
	}{
		{"10.00019", "0", "10"},
		{"100.5", "0", "100.4999"},
		{"100.5", "5", "5"},
		{"3", "5", "2.9999"},
		{"0.00005", "0", "0"},
	}
	for _, tc := range cases {
		got := spendable(decimal.RequireFromString(tc.balance), decimal.RequireFromString(tc.configured))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("spendable(%s, %s) = %s, want %s", tc.balance, tc.configured, got, tc.want)
		}
	}
}

func TestBalance_FlagsBelowThreshold(t *testing.T) {
	api := newFakeAPI().on(pathCoinBalance, balanceJSON("50.5"))
	op := NewBalance(config.BalanceConfig{Coin: "USDT", AccountType: "UNIFIED", Threshold: decimal.NewFromInt(100)})

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Value.Valid || !result.Value.Decimal.Equal(decimal.RequireFromString("50.5")) {
		t.Errorf("unexpected value %+v", result.Value)
	}
	if !result.Flagged {
		t.Error("balance below threshold should be flagged")
	}
	if op.NumericField() != "USDT" || op.Retryable() {
		t.Errorf("unexpected op metadata: %q retryable=%v", op.NumericField(), op.Retryable())
	}

	q := api.calls[0].query
	if q.Get("accountType") != "UNIFIED" || q.Get("coin") != "USDT" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestBalance_MissingField(t *testing.T) {
	api := newFakeAPI().on(pathCoinBalance, `{"balance":{}}`)
	_, err := NewBalance(config.BalanceConfig{Coin: "USDT", AccountType: "FUND"}).Execute(context.Background(), session(api, account.Account{}))
	if !errors.Is(err, ErrMissingBalance) {
		t.Fatalf("expected ErrMissingBalance, got %v", err)
	}
}

func TestTransfer_MovesSpendableAmount(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance, balanceJSON("100.5")).
		on(pathInterTransfer, `{"transferId":"t-1","status":"SUCCESS"}`)
	op := NewTransfer(config.TransferConfig{Coin: "USDT", FromAccountType: "FUND", ToAccountType: "UNIFIED"})

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	posts := api.posts(pathInterTransfer)
	if len(posts) != 1 {
		t.Fatalf("expected one transfer, got %d", len(posts))
	}
	body := posts[0].body
	if body["amount"] != "100.4999" || body["fromAccountType"] != "FUND" || body["toAccountType"] != "UNIFIED" {
		t.Errorf("unexpected body %v", body)
	}
	id, _ := body["transferId"].(string)
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Errorf("transferId should be a dashless uuid: %q", id)
	}
	if !result.Value.Decimal.Equal(decimal.RequireFromString("100.4999")) {
		t.Errorf("unexpected value %s", result.Value.Decimal)
	}
	if result.Fields["status"] != "SUCCESS" {
		t.Errorf("unexpected fields %v", result.Fields)
	}
}

func TestTransfer_SkipsEmptyBalance(t *testing.T) {
	api := newFakeAPI().on(pathCoinBalance, balanceJSON("0"))
	result, err := NewTransfer(config.TransferConfig{Coin: "USDT", FromAccountType: "FUND", ToAccountType: "UNIFIED"}).
		Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Flagged || !result.Value.Decimal.IsZero() {
		t.Errorf("skip should be flagged with zero value: %+v", result)
	}
	if len(api.posts(pathInterTransfer)) != 0 {
		t.Error("no transfer should be submitted")
	}
}

func TestSwap_BuysWithQuoteBalance(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance+"?coin=USDT", balanceJSON("25.678")).
		on("/v5/order/create", `{"orderId":"o-1"}`)
	op, err := NewSwap(config.SwapConfig{Base: "USDC", Quote: "USDT", Side: "buy", DecimalPlaces: 2})
	if err != nil {
		t.Fatalf("NewSwap: %v", err)
	}

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	posts := api.posts("/v5/order/create")
	if len(posts) != 1 {
		t.Fatalf("expected one order, got %d", len(posts))
	}
	body := posts[0].body
	if body["symbol"] != "USDCUSDT" || body["side"] != "Buy" || body["qty"] != "25.67" || body["orderType"] != "Market" {
		t.Errorf("unexpected order %v", body)
	}
	if _, ok := body["isLeverage"]; ok {
		t.Error("plain swap must not set isLeverage")
	}
	if result.Fields["order_id"] != "o-1" {
		t.Errorf("unexpected fields %v", result.Fields)
	}
}

func TestSwap_SkipsDust(t *testing.T) {
	api := newFakeAPI().on(pathCoinBalance, balanceJSON("0.009"))
	op, _ := NewSwap(config.SwapConfig{Base: "USDC", Quote: "USDT", Side: "Sell", DecimalPlaces: 2})

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Flagged {
		t.Error("dust balance should be a flagged skip")
	}
	if api.calls[0].query.Get("coin") != "USDC" {
		t.Errorf("sell should check the base coin, got %v", api.calls[0].query)
	}
}

func TestSwap_RetryReusesOrderLinkID(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance, balanceJSON("25")).
		on("/v5/order/create", `{"orderId":"o-1"}`).
		failFirst("/v5/order/create", &exchange.TransportError{Path: "/v5/order/create", StatusCode: 504})
	op, err := NewSwap(config.SwapConfig{Base: "USDC", Quote: "USDT", Side: "Buy", DecimalPlaces: 2})
	if err != nil {
		t.Fatalf("NewSwap: %v", err)
	}

	task := engine.NewTask(op, dialerFor(api), retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}, 0, nil)
	outcome := task.Execute(context.Background(), account.Account{ID: "acc-1"})
	if !outcome.Succeeded() || outcome.Attempts != 2 {
		t.Fatalf("expected success on the second attempt, got %+v", outcome)
	}

	orders := api.posts("/v5/order/create")
	if len(orders) != 2 {
		t.Fatalf("expected two submissions, got %d", len(orders))
	}
	first, second := orders[0].body["orderLinkId"], orders[1].body["orderLinkId"]
	if first == "" || first != second {
		t.Errorf("retry must resubmit the same orderLinkId: %v vs %v", first, second)
	}

	other := task.Execute(context.Background(), account.Account{ID: "acc-2"})
	if !other.Succeeded() {
		t.Fatalf("acc-2: %+v", other)
	}
	if api.posts("/v5/order/create")[2].body["orderLinkId"] == first {
		t.Error("different accounts must not share an orderLinkId")
	}
}

func TestSwap_DuplicateLinkIDResolvesToPlacedOrder(t *testing.T) {
	op, err := NewSwap(config.SwapConfig{Base: "USDC", Quote: "USDT", Side: "Buy", DecimalPlaces: 2})
	if err != nil {
		t.Fatalf("NewSwap: %v", err)
	}
	linkID := op.links.get("acc-1")

	api := newFakeAPI().
		on(pathCoinBalance, balanceJSON("25")).
		fail("/v5/order/create", &exchange.OperationError{Path: "/v5/order/create", Code: 170141, Message: "Duplicate clientOrderId"}).
		on("/v5/order/realtime", `{"list":[]}`).
		on("/v5/order/history", `{"list":[{"orderId":"o-77","orderLinkId":"`+linkID+`"}]}`)

	result, err := op.Execute(context.Background(), session(api, account.Account{ID: "acc-1"}))
	if err != nil {
		t.Fatalf("duplicate orderLinkId should resolve to the placed order: %v", err)
	}
	if result.Fields["order_id"] != "o-77" || result.Fields["order_link_id"] != linkID {
		t.Errorf("unexpected fields %v", result.Fields)
	}
	if len(api.posts("/v5/order/create")) != 1 {
		t.Error("no further order should be submitted")
	}
}

func TestMarginSwap_RetryReusesOrderLinkID(t *testing.T) {
	api := newFakeAPI().
		on(pathSpotMarginMode, `{}`).
		on(pathSpotMarginLeverage, `{}`).
		on(pathCoinBalance, balanceJSON("10")).
		on("/v5/order/create", `{"orderId":"m-1"}`).
		failFirst("/v5/order/create", &exchange.TransportError{Path: "/v5/order/create", StatusCode: 504})
	op, err := NewMarginSwap(config.MarginSwapConfig{Base: "USDC", Quote: "USDT", Side: "Buy", Leverage: 2, DecimalPlaces: 2})
	if err != nil {
		t.Fatalf("NewMarginSwap: %v", err)
	}

	task := engine.NewTask(op, dialerFor(api), retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}, 0, nil)
	if outcome := task.Execute(context.Background(), account.Account{ID: "acc-1"}); !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}

	orders := api.posts("/v5/order/create")
	if len(orders) != 2 || orders[0].body["orderLinkId"] != orders[1].body["orderLinkId"] {
		t.Fatalf("retry must resubmit the same orderLinkId: %+v", orders)
	}
}

func TestNewSwap_RejectsInvalidSide(t *testing.T) {
	if _, err := NewSwap(config.SwapConfig{Side: "hold"}); err == nil {
		t.Fatal("expected error for invalid side")
	}
}

func TestMarginSwap_EnablesLeverageBeforeOrder(t *testing.T) {
	api := newFakeAPI().
		on(pathSpotMarginMode, `{}`).
		on(pathSpotMarginLeverage, `{}`).
		on(pathCoinBalance, balanceJSON("10")).
		on("/v5/order/create", `{"orderId":"m-1"}`)
	op, err := NewMarginSwap(config.MarginSwapConfig{Base: "USDC", Quote: "USDT", Side: "Buy", Leverage: 3, DecimalPlaces: 2})
	if err != nil {
		t.Fatalf("NewMarginSwap: %v", err)
	}

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var order []string
	for _, c := range api.calls {
		if c.method == "POST" {
			order = append(order, c.path)
		}
	}
	want := []string{pathSpotMarginMode, pathSpotMarginLeverage, "/v5/order/create"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected call order %v", order)
	}
	if api.posts(pathSpotMarginLeverage)[0].body["leverage"] != "3" {
		t.Error("leverage should be sent as a string")
	}
	placed := api.posts("/v5/order/create")[0].body
	if placed["qty"] != "30" || placed["isLeverage"] != float64(1) {
		t.Errorf("unexpected order %v", placed)
	}
	if result.Fields["leverage"] != "3" {
		t.Errorf("unexpected fields %v", result.Fields)
	}
}

func TestWithdraw_ReusesRequestIDAcrossAttempts(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance, balanceJSON("20")).
		on(pathWithdraw, `{"id":"w-1"}`)
	op := NewWithdraw(config.WithdrawConfig{Coin: "USDT", Chain: "TRX"})
	acct := account.Account{ID: "acc-7", WithdrawAddress: "TAddr", WithdrawTag: "memo"}

	for i := 0; i < 2; i++ {
		if _, err := op.Execute(context.Background(), session(api, acct)); err != nil {
			t.Fatalf("Execute #%d: %v", i+1, err)
		}
	}

	posts := api.posts(pathWithdraw)
	if len(posts) != 2 {
		t.Fatalf("expected two submissions, got %d", len(posts))
	}
	first, second := posts[0].body, posts[1].body
	if first["requestId"] == "" || first["requestId"] != second["requestId"] {
		t.Errorf("requestId should be stable per account: %v vs %v", first["requestId"], second["requestId"])
	}
	if first["amount"] != "19.9999" || first["address"] != "TAddr" || first["tag"] != "memo" {
		t.Errorf("unexpected body %v", first)
	}
	if first["accountType"] != "FUND" || first["forceChain"] != float64(1) || first["timestamp"] != float64(api.now) {
		t.Errorf("unexpected body %v", first)
	}

	other := session(api, account.Account{ID: "acc-8", WithdrawAddress: "TOther"})
	if _, err := op.Execute(context.Background(), other); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if api.posts(pathWithdraw)[2].body["requestId"] == first["requestId"] {
		t.Error("different accounts must not share a requestId")
	}
}

func TestWithdraw_RequiresAddress(t *testing.T) {
	api := newFakeAPI()
	_, err := NewWithdraw(config.WithdrawConfig{Coin: "USDT", Chain: "TRX"}).Execute(context.Background(), session(api, account.Account{}))
	if !errors.Is(err, ErrNoWithdrawAddress) {
		t.Fatalf("expected ErrNoWithdrawAddress, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Error("no request should be sent without an address")
	}
}

func TestDepositAddress_TableMarksFailures(t *testing.T) {
	api := newFakeAPI().on(pathDepositAddress,
		`{"coin":"USDT","chains":[{"chainType":"TRX","addressDeposit":"TX1","tagDeposit":"","chain":"TRX"}]}`)
	op := NewDepositAddress(config.DepositAddressConfig{Coin: "USDT", Chain: "TRX"})

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Fields["address"] != "TX1" {
		t.Fatalf("unexpected fields %v", result.Fields)
	}

	header, rows := op.Table([]engine.Outcome{
		{AccountID: "A", Status: engine.StatusSuccess, Result: result},
		{AccountID: "B", Status: engine.StatusFailure, Message: "boom"},
	})
	if strings.Join(header, ",") != "Account ID,Chain,Token,Deposit Address" {
		t.Errorf("unexpected header %v", header)
	}
	if rows[0][3] != "TX1" || rows[1][3] != "Error or no address" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestDepositAddress_EmptyChains(t *testing.T) {
	api := newFakeAPI().on(pathDepositAddress, `{"coin":"USDT","chains":[]}`)
	_, err := NewDepositAddress(config.DepositAddressConfig{Coin: "USDT", Chain: "TRX"}).Execute(context.Background(), session(api, account.Account{}))
	if !errors.Is(err, ErrNoDepositAddress) {
		t.Fatalf("expected ErrNoDepositAddress, got %v", err)
	}
}

func TestUpgradeUTA_PollsUntilUnified(t *testing.T) {
	api := newFakeAPI().
		on(pathAccountInfo, `{"unifiedMarginStatus":1}`, `{"unifiedMarginStatus":1}`, `{"unifiedMarginStatus":4}`).
		on(pathUpgradeUTA, `{"unifiedUpdateStatus":"PROCESS"}`)
	op := NewUpgradeUTA(config.UpgradeConfig{PollAttempts: 5})
	op.sleep = noSleep

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Flagged || !strings.Contains(result.Display, "2") {
		t.Errorf("expected success after two polls, got %+v", result)
	}
}

func TestUpgradeUTA_AlreadyUnified(t *testing.T) {
	api := newFakeAPI().on(pathAccountInfo, `{"unifiedMarginStatus":3}`)
	if _, err := NewUpgradeUTA(config.UpgradeConfig{}).Execute(context.Background(), session(api, account.Account{})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(api.posts(pathUpgradeUTA)) != 0 {
		t.Error("unified account must not be upgraded again")
	}
}

func TestUpgradeUTA_RejectedWithMessages(t *testing.T) {
	api := newFakeAPI().
		on(pathAccountInfo, `{"unifiedMarginStatus":1}`).
		on(pathUpgradeUTA, `{"unifiedUpdateStatus":"FAIL","unifiedUpdateMsg":{"msg":["has open orders"]}}`)

	_, err := NewUpgradeUTA(config.UpgradeConfig{}).Execute(context.Background(), session(api, account.Account{}))
	if err == nil || !strings.Contains(err.Error(), "has open orders") {
		t.Fatalf("expected failure carrying exchange messages, got %v", err)
	}
}

func TestUpgradeUTA_StillProcessingIsFlagged(t *testing.T) {
	api := newFakeAPI().
		on(pathAccountInfo, `{"unifiedMarginStatus":1}`).
		on(pathUpgradeUTA, `{"unifiedUpdateStatus":"PROCESS"}`)
	op := NewUpgradeUTA(config.UpgradeConfig{PollAttempts: 2})
	op.sleep = noSleep

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Flagged {
		t.Error("unfinished upgrade should be flagged")
	}
}

func TestVolume_RoundTripsAndReportsFinalBalance(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance+"?coin=USDT", balanceJSON("10"), balanceJSON("9.99"), balanceJSON("9.97")).
		on(pathCoinBalance+"?coin=USDC", balanceJSON("10"), balanceJSON("9.98")).
		on("/v5/order/create", `{"orderId":"v"}`)
	op := NewVolume(config.VolumeConfig{Repeats: 2, DecimalPlaces: 2})
	op.sleep = noSleep

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	orders := api.posts("/v5/order/create")
	if len(orders) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(orders))
	}
	sides := []string{"Buy", "Sell", "Buy", "Sell"}
	for i, o := range orders {
		if o.body["side"] != sides[i] {
			t.Errorf("order %d: expected %s, got %v", i, sides[i], o.body["side"])
		}
	}
	if result.Flagged || !result.Value.Decimal.Equal(decimal.RequireFromString("9.97")) {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestVolume_CollectsRoundErrors(t *testing.T) {
	api := newFakeAPI().
		on(pathCoinBalance, balanceJSON("10")).
		fail("/v5/order/create", &exchange.OperationError{Path: "/v5/order/create", Code: 170131, Message: "Insufficient balance"})
	op := NewVolume(config.VolumeConfig{Repeats: 2, DecimalPlaces: 2})
	op.sleep = noSleep

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("round errors should not fail the task: %v", err)
	}
	if !result.Flagged {
		t.Error("result should be flagged")
	}
	if !strings.Contains(result.Fields["errors"], "第 1 轮") || !strings.Contains(result.Fields["errors"], "第 2 轮") {
		t.Errorf("expected both rounds in errors, got %q", result.Fields["errors"])
	}
}

func TestChains_ListsNetworks(t *testing.T) {
	api := newFakeAPI().on(pathCoinInfo,
		`{"rows":[{"coin":"USDT","chains":[{"chain":"TRX","chainType":"TRC20","withdrawFee":"1"},{"chain":"ETH","chainType":"ERC20","withdrawFee":"3"}]}]}`)
	op := NewChains(config.ChainsConfig{Coin: "usdt"})

	result, err := op.Execute(context.Background(), session(api, account.Account{}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Display, "TRX, ETH") {
		t.Errorf("unexpected display %q", result.Display)
	}
	if !strings.Contains(result.Fields["ETH"], "fee=3") {
		t.Errorf("unexpected fields %v", result.Fields)
	}
	if api.calls[0].query.Get("coin") != "USDT" {
		t.Error("coin should be upper-cased")
	}
}

func TestRegistry(t *testing.T) {
	cfg := config.OpsConfig{
		Swap:       config.SwapConfig{Side: "Buy"},
		MarginSwap: config.MarginSwapConfig{Side: "Sell", Leverage: 2},
	}
	for _, d := range Descriptors() {
		op, err := d.Build(cfg)
		if err != nil {
			t.Fatalf("%s: %v", d.Name, err)
		}
		if op.Name() != d.Name {
			t.Errorf("descriptor %q built op %q", d.Name, op.Name())
		}
	}
	if len(Descriptors()) != 9 {
		t.Errorf("expected 9 operations, got %d", len(Descriptors()))
	}
	if _, err := Lookup("nope"); err == nil {
		t.Error("unknown operation should fail")
	}

	var _ FirstAccountOnly = (*Chains)(nil)
	var _ Tabular = (*DepositAddress)(nil)
}
