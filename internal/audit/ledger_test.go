package audit

import (
	"path/filepath"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := newTestLedger(t)

	id, err := l.Append(Record{FromID: 1, ToID: 2, Status: "sent", Timestamp: 100})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected nonzero row id")
	}

	rows, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].FromID != 1 || rows[0].ToID != 2 || rows[0].Status != "sent" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestRecordDeliveryAppendsRow(t *testing.T) {
	l := newTestLedger(t)

	l.RecordDelivery(5, 6, "failed", "recipient_offline")

	rows, err := l.ForRecipient(6)
	if err != nil {
		t.Fatalf("ForRecipient: %v", err)
	}
	if len(rows) != 1 || rows[0].Reason != "recipient_offline" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	l := newTestLedger(t)

	for i := int64(0); i < 3; i++ {
		if _, err := l.Append(Record{FromID: 1, ToID: 2, Status: "sent", Timestamp: i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Timestamp != 2 || rows[1].Timestamp != 1 {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestForRecipientFiltersByID(t *testing.T) {
	l := newTestLedger(t)

	l.RecordDelivery(1, 2, "sent", "")
	l.RecordDelivery(1, 3, "sent", "")
	l.RecordDelivery(1, 2, "failed", "recipient_offline")

	rows, err := l.ForRecipient(2)
	if err != nil {
		t.Fatalf("ForRecipient: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for recipient 2, got %d", len(rows))
	}
}
