package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

func sampleEvent() usecase.AuditEvent {
	return usecase.AuditEvent{
		Record: domain.TransactionRecord{
			ID:            uuid.New(),
			AccountID:     uuid.New(),
			OwnerID:       uuid.New(),
			Kind:          domain.KindCredit,
			Amount:        decimal.RequireFromString("10.00"),
			Reference:     "R1",
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.RequireFromString("10.00"),
			Status:        domain.StatusSuccess,
			CreatedAt:     time.Now().UTC(),
		},
		EmittedAt: time.Now().UTC(),
	}
}

func TestJournalSinkWritesEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	journal, err := wal.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer journal.Close()

	sink := NewJournalSink(journal)
	event := sampleEvent()
	if err := sink.Notify(event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var got []usecase.AuditEvent
	err = journal.Replay(func(raw []byte) error {
		var e usecase.AuditEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 1 || got[0].Record.Reference != "R1" {
		t.Fatalf("got %+v", got)
	}
}

func TestWebhookSink(t *testing.T) {
	received := make(chan usecase.AuditEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event usecase.AuditEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Notify(sampleEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	event := <-received
	if event.Record.Reference != "R1" {
		t.Errorf("reference = %s", event.Record.Reference)
	}
}

func TestWebhookSinkNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Notify(sampleEvent()); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Notify(usecase.AuditEvent) error {
	s.calls++
	return s.err
}

func TestFanoutNotifiesAllSinks(t *testing.T) {
	ok := &stubSink{}
	bad := &stubSink{err: errors.New("down")}
	tail := &stubSink{}

	err := Fanout{ok, bad, tail}.Notify(sampleEvent())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	// 一個 sink 壞掉不影響其他 sink
	if ok.calls != 1 || bad.calls != 1 || tail.calls != 1 {
		t.Errorf("calls = %d/%d/%d", ok.calls, bad.calls, tail.calls)
	}
}
