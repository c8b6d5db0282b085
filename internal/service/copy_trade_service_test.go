package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
)

func tradePost(id, ticker string, action types.TradeAction) *models.Post {
	return &models.Post{
		ID:          id,
		AuthorID:    "author-1",
		Content:     "Bought some " + ticker,
		TradeTicker: &ticker,
		TradeAction: &action,
	}
}

type copyTradeFixture struct {
	posts    *mockPostRepo
	attempts *mockCopyTradeRepo
	creds    *mockCredentialRepo
	client   *mockBrokerageClient
	engine   *CopyTradeEngine
}

func newCopyTradeFixture(t *testing.T) *copyTradeFixture {
	t.Helper()

	posts := newMockPostRepo()
	attempts := newMockCopyTradeRepo()
	creds := newMockCredentialRepo()
	client := newMockBrokerageClient()
	client.validKeys["copier-key"] = true

	keys := NewCredentialService(creds, testVault(), client, nil, nil)
	if err := keys.Connect(context.Background(), "copier-1", "copier-key"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	return &copyTradeFixture{
		posts:    posts,
		attempts: attempts,
		creds:    creds,
		client:   client,
		engine:   NewCopyTradeEngine(posts, attempts, keys, client),
	}
}

func TestExecuteSuccessfulCopyTrade(t *testing.T) {
	f := newCopyTradeFixture(t)
	f.posts.posts["post-1"] = tradePost("post-1", "AAPL", types.ActionBuy)

	result, err := f.engine.Execute(context.Background(), "copier-1", "post-1", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success || result.TradeID == "" {
		t.Errorf("Expected a successful result with a trade id, got %+v", result)
	}

	attempt := f.attempts.attempts[result.TradeID]
	if attempt == nil {
		t.Fatal("Expected a persisted attempt")
	}
	if attempt.Status != types.StatusExecuted {
		t.Errorf("Expected executed status, got %s", attempt.Status)
	}
	if attempt.ExecutedAt == nil {
		t.Error("Expected executed_at to be set")
	}
	if attempt.ErrorMessage != nil {
		t.Errorf("Expected no error message, got %s", *attempt.ErrorMessage)
	}

	if len(f.client.executedTrades) != 1 {
		t.Fatalf("Expected one brokerage trade, got %d", len(f.client.executedTrades))
	}
	trade := f.client.executedTrades[0]
	if trade.Symbol != "AAPL" || trade.Direction != types.ActionBuy {
		t.Errorf("Expected AAPL BUY from the post, got %s %s", trade.Symbol, trade.Direction)
	}
	if trade.OrderType != types.OrderMarket || trade.Currency != "USD" {
		t.Errorf("Expected USD market order, got %s %s", trade.Currency, trade.OrderType)
	}
	if trade.Amount == nil || !trade.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected amount 100, got %v", trade.Amount)
	}
}

func TestExecuteRecordsBrokerageFailure(t *testing.T) {
	f := newCopyTradeFixture(t)
	f.posts.posts["post-1"] = tradePost("post-1", "TSLA", types.ActionBuy)
	f.client.tradeErr = &brokerage.APIError{StatusCode: 400, Message: "insufficient funds"}

	_, err := f.engine.Execute(context.Background(), "copier-1", "post-1", decimal.NewFromInt(5000))
	assertServiceErrorCode(t, err, types.CodeTradeFailed)

	if len(f.attempts.attempts) != 1 {
		t.Fatalf("Expected one persisted attempt, got %d", len(f.attempts.attempts))
	}
	for _, attempt := range f.attempts.attempts {
		if attempt.Status != types.StatusFailed {
			t.Errorf("Expected failed status, got %s", attempt.Status)
		}
		if attempt.ErrorMessage == nil || *attempt.ErrorMessage != "insufficient funds" {
			t.Errorf("Expected brokerage message on the attempt, got %v", attempt.ErrorMessage)
		}
		if attempt.ExecutedAt != nil {
			t.Error("Expected no executed_at on a failed attempt")
		}
	}
}

func TestExecuteGenericFailureMessage(t *testing.T) {
	f := newCopyTradeFixture(t)
	f.posts.posts["post-1"] = tradePost("post-1", "TSLA", types.ActionSell)
	f.client.tradeErr = context.DeadlineExceeded

	_, err := f.engine.Execute(context.Background(), "copier-1", "post-1", decimal.NewFromInt(50))
	assertServiceErrorCode(t, err, types.CodeTradeFailed)

	for _, attempt := range f.attempts.attempts {
		if attempt.ErrorMessage == nil || *attempt.ErrorMessage != "Trade execution failed" {
			t.Errorf("Expected the generic failure message, got %v", attempt.ErrorMessage)
		}
	}
}

func TestExecuteWithoutConnectedBrokerage(t *testing.T) {
	posts := newMockPostRepo()
	posts.posts["post-1"] = tradePost("post-1", "AAPL", types.ActionBuy)
	attempts := newMockCopyTradeRepo()
	client := newMockBrokerageClient()
	keys := NewCredentialService(newMockCredentialRepo(), testVault(), client, nil, nil)

	engine := NewCopyTradeEngine(posts, attempts, keys, client)

	_, err := engine.Execute(context.Background(), "copier-1", "post-1", decimal.NewFromInt(100))
	assertServiceErrorCode(t, err, types.CodeNotConnected)

	if len(attempts.attempts) != 0 {
		t.Errorf("Expected no attempt row for an unconnected user, got %d", len(attempts.attempts))
	}
}

func TestExecutePostWithoutTrade(t *testing.T) {
	f := newCopyTradeFixture(t)
	f.posts.posts["post-1"] = &models.Post{ID: "post-1", AuthorID: "author-1", Content: "just vibes"}

	_, err := f.engine.Execute(context.Background(), "copier-1", "post-1", decimal.NewFromInt(100))
	assertServiceErrorCode(t, err, types.CodeNotCopyable)

	if len(f.attempts.attempts) != 0 {
		t.Errorf("Expected no attempt row for a non-copyable post, got %d", len(f.attempts.attempts))
	}
}

func TestExecuteUnknownPost(t *testing.T) {
	f := newCopyTradeFixture(t)

	_, err := f.engine.Execute(context.Background(), "copier-1", "missing", decimal.NewFromInt(100))
	assertServiceErrorCode(t, err, types.CodePostNotFound)
}

func TestExecuteRejectsNonPositiveAmount(t *testing.T) {
	f := newCopyTradeFixture(t)
	f.posts.posts["post-1"] = tradePost("post-1", "AAPL", types.ActionBuy)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := f.engine.Execute(context.Background(), "copier-1", "post-1", amount)
		assertServiceErrorCode(t, err, types.CodeInvalidInput)
	}
	if len(f.attempts.attempts) != 0 {
		t.Errorf("Expected no attempt rows, got %d", len(f.attempts.attempts))
	}
}

func TestHistoryPagination(t *testing.T) {
	f := newCopyTradeFixture(t)

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = f.attempts.CreatePending(context.Background(), &models.CopyTrade{
			SourcePostID:    "post-1",
			CopierID:        "copier-1",
			RequestedAmount: decimal.NewFromInt(int64(10 + i)),
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		})
	}

	page, err := f.engine.History(context.Background(), "copier-1", nil, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page.Trades) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(page.Trades))
	}
	if !page.Trades[0].CreatedAt.After(page.Trades[1].CreatedAt) {
		t.Error("Expected newest-first ordering")
	}
	if page.NextCursor == nil {
		t.Fatal("Expected a next cursor on a full page")
	}

	cursor, err := time.Parse(time.RFC3339Nano, *page.NextCursor)
	if err != nil {
		t.Fatalf("Cursor did not parse: %v", err)
	}

	page2, err := f.engine.History(context.Background(), "copier-1", &cursor, 2)
	if err != nil {
		t.Fatalf("History page 2 failed: %v", err)
	}
	if len(page2.Trades) != 2 {
		t.Fatalf("Expected 2 entries on page 2, got %d", len(page2.Trades))
	}
	if !page2.Trades[0].CreatedAt.Before(cursor) {
		t.Error("Expected page 2 entries strictly before the cursor")
	}

	cursor2, _ := time.Parse(time.RFC3339Nano, *page2.NextCursor)
	page3, err := f.engine.History(context.Background(), "copier-1", &cursor2, 2)
	if err != nil {
		t.Fatalf("History page 3 failed: %v", err)
	}
	if len(page3.Trades) != 1 {
		t.Fatalf("Expected 1 entry on the last page, got %d", len(page3.Trades))
	}
	if page3.NextCursor != nil {
		t.Error("Expected no cursor on a short page")
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	f := newCopyTradeFixture(t)

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		_ = f.attempts.CreatePending(context.Background(), &models.CopyTrade{
			SourcePostID:    "post-1",
			CopierID:        "copier-1",
			RequestedAmount: decimal.NewFromInt(10),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := f.engine.History(context.Background(), "copier-1", nil, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page.Trades) != DefaultHistoryLimit {
		t.Errorf("Expected the default page size %d, got %d", DefaultHistoryLimit, len(page.Trades))
	}
	if page.NextCursor == nil {
		t.Error("Expected a next cursor on a full default page")
	}
}

func TestHistoryEmptyForOtherUsers(t *testing.T) {
	f := newCopyTradeFixture(t)
	_ = f.attempts.CreatePending(context.Background(), &models.CopyTrade{
		SourcePostID:    "post-1",
		CopierID:        "copier-1",
		RequestedAmount: decimal.NewFromInt(10),
	})

	page, err := f.engine.History(context.Background(), "someone-else", nil, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page.Trades) != 0 {
		t.Errorf("Expected no entries for another user, got %d", len(page.Trades))
	}
	if page.NextCursor != nil {
		t.Error("Expected no cursor on an empty page")
	}
}
