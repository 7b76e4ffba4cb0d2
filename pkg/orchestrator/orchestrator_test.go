package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/store/memory"
)

// fakeNotifier records payloads and fails for amounts listed in failOn.
type fakeNotifier struct {
	sent   []api.Payload
	failOn map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, p api.Payload) (string, error) {
	for _, line := range p.Lines {
		if f.failOn[strings.TrimPrefix(line, "金額：")] {
			return "", errors.New("transport down")
		}
	}
	f.sent = append(f.sent, p)
	return fmt.Sprintf("ack-%d", len(f.sent)), nil
}

func snapshotRow(date, contents, amount, account, subAccount string) string {
	return fmt.Sprintf(`<tr><td></td><td>%s</td><td>%s</td><td>%s</td><td></td><td><span>%s</span><span>%s</span></td></tr>`,
		date, contents, amount, account, subAccount)
}

var fixedNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, ledgerStore, masterStore *memory.Store, n *fakeNotifier) *Orchestrator {
	t.Helper()
	o, err := New(Config{Destination: "C123", Location: time.UTC}, Deps{
		Ledger:   ledgerStore,
		Master:   masterStore,
		Notifier: n,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func mainSubMaster() *memory.Store {
	return memory.New([]string{"MAIN", "SUB", "", ":moneybag:", "ON"})
}

func TestNotifyPayments_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		master       *memory.Store
		failOn       map[string]bool
		wantRows     int
		wantNotified bool
		wantSent     int
	}{
		{
			name:         "inflow transfer is notified",
			amount:       "10,000",
			master:       mainSubMaster(),
			wantRows:     1,
			wantNotified: true,
			wantSent:     1,
		},
		{
			name:     "outflow is recorded but not notified",
			amount:   "-10,000",
			master:   mainSubMaster(),
			wantRows: 1,
		},
		{
			name:     "unmatched account is dropped",
			amount:   "10,000",
			master:   memory.New(),
			wantRows: 0,
		},
		{
			name:     "transport failure is recorded as unnotified",
			amount:   "10,000",
			master:   mainSubMaster(),
			failOn:   map[string]bool{"10,000": true},
			wantRows: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ledgerStore := memory.New()
			n := &fakeNotifier{failOn: tc.failOn}
			o := newTestOrchestrator(t, ledgerStore, tc.master, n)

			raw := snapshotRow("2024/01/10", "振込ABC入金", tc.amount, "MAIN", "SUB")
			res, err := o.NotifyPayments(context.Background(), raw)
			if err != nil {
				t.Fatalf("NotifyPayments: %v", err)
			}

			rows, _ := ledgerStore.ReadRows(context.Background())
			if len(rows) != tc.wantRows {
				t.Fatalf("ledger rows: got %d, want %d", len(rows), tc.wantRows)
			}
			if res.Appended != tc.wantRows {
				t.Errorf("appended: got %d, want %d", res.Appended, tc.wantRows)
			}
			if tc.wantRows == 0 && ledgerStore.Appends() != 0 {
				t.Errorf("empty batch wrote to the ledger")
			}
			if len(n.sent) != tc.wantSent {
				t.Fatalf("sent: got %d, want %d", len(n.sent), tc.wantSent)
			}

			if tc.wantRows == 1 {
				notifiedAt := rows[0][5]
				if tc.wantNotified && notifiedAt != "2024/01/10 09:00:00" {
					t.Errorf("notifiedAt: got %q, want %q", notifiedAt, "2024/01/10 09:00:00")
				}
				if !tc.wantNotified && notifiedAt != "" {
					t.Errorf("notifiedAt: got %q, want empty", notifiedAt)
				}
			}

			if tc.wantSent == 1 {
				text := n.sent[0].Text()
				if !strings.Contains(text, "MAIN SUB") || !strings.Contains(text, "10,000") {
					t.Errorf("payload %q does not mention account and amount", text)
				}
				if n.sent[0].Icon != ":moneybag:" || n.sent[0].Destination != "C123" {
					t.Errorf("payload icon/destination: got %q/%q", n.sent[0].Icon, n.sent[0].Destination)
				}
			}
		})
	}
}

func TestNotifyPayments_Idempotent(t *testing.T) {
	ledgerStore := memory.New()
	n := &fakeNotifier{}
	o := newTestOrchestrator(t, ledgerStore, mainSubMaster(), n)

	raw := snapshotRow("2024/01/10", "振込ABC入金", "10,000", "MAIN", "SUB") +
		snapshotRow("2024/01/11", "カード引落", "-5,000", "MAIN", "SUB")

	first, err := o.NotifyPayments(context.Background(), raw)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Appended != 2 || first.Notified != 1 {
		t.Fatalf("first pass: appended %d, notified %d; want 2 and 1", first.Appended, first.Notified)
	}
	if got := first.NotifiedTotal.String(); got != "10000" {
		t.Errorf("notified total: got %s, want 10000", got)
	}

	second, err := o.NotifyPayments(context.Background(), raw)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Appended != 0 || second.Duplicates != 2 {
		t.Errorf("second pass: appended %d, duplicates %d; want 0 and 2", second.Appended, second.Duplicates)
	}
	if len(n.sent) != 1 {
		t.Errorf("sent: got %d, want 1", len(n.sent))
	}
	if ledgerStore.Appends() != 1 {
		t.Errorf("ledger appends: got %d, want 1", ledgerStore.Appends())
	}
}

func TestNotifyPayments_FailureIsLocal(t *testing.T) {
	ledgerStore := memory.New()
	n := &fakeNotifier{failOn: map[string]bool{"1,000": true}}
	o := newTestOrchestrator(t, ledgerStore, mainSubMaster(), n)

	raw := snapshotRow("2024/01/10", "振込A", "1,000", "MAIN", "SUB") +
		snapshotRow("2024/01/10", "振込B", "2,000", "MAIN", "SUB")

	res, err := o.NotifyPayments(context.Background(), raw)
	if err != nil {
		t.Fatalf("NotifyPayments: %v", err)
	}
	if res.SendFailures != 1 || res.Notified != 1 || res.Appended != 2 {
		t.Errorf("got failures %d, notified %d, appended %d; want 1, 1, 2", res.SendFailures, res.Notified, res.Appended)
	}

	rows, _ := ledgerStore.ReadRows(context.Background())
	if rows[0][5] != "" || rows[1][5] == "" {
		t.Errorf("notifiedAt: got %q and %q, want empty then set", rows[0][5], rows[1][5])
	}
}

// cancellingNotifier delivers, then cancels the pass context.
type cancellingNotifier struct {
	fakeNotifier
	cancel context.CancelFunc
}

func (c *cancellingNotifier) Send(ctx context.Context, p api.Payload) (string, error) {
	ack, err := c.fakeNotifier.Send(ctx, p)
	c.cancel()
	return ack, err
}

func TestNotifyPayments_CancelAfterSendIsRecorded(t *testing.T) {
	ledgerStore := memory.New()
	n := &fakeNotifier{}
	raw := snapshotRow("2024/01/10", "振込A", "1,000", "MAIN", "SUB") +
		snapshotRow("2024/01/10", "振込B", "2,000", "MAIN", "SUB")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cn := &cancellingNotifier{cancel: cancel}
	first, err := New(Config{Destination: "C123", Location: time.UTC}, Deps{
		Ledger:   ledgerStore,
		Master:   mainSubMaster(),
		Notifier: cn,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := first.NotifyPayments(ctx, raw)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want context.Canceled", err)
	}
	var passErr *PassError
	if errors.As(err, &passErr) {
		t.Fatalf("append failed after cancel: %v", err)
	}
	if res.Appended != 1 || res.Deferred != 1 {
		t.Errorf("appended %d, deferred %d; want 1 and 1", res.Appended, res.Deferred)
	}
	if len(res.Rows) != 1 || !res.Rows[0].Notified() {
		t.Fatalf("rows: got %+v, want one notified row", res.Rows)
	}

	second := newTestOrchestrator(t, ledgerStore, mainSubMaster(), n)
	res, err = second.NotifyPayments(context.Background(), raw)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Duplicates != 1 || res.Notified != 1 {
		t.Errorf("second pass: duplicates %d, notified %d; want 1 and 1", res.Duplicates, res.Notified)
	}

	sent := map[string]int{}
	for _, p := range append(cn.sent, n.sent...) {
		sent[p.Lines[1]]++
	}
	for line, count := range sent {
		if count != 1 {
			t.Errorf("%s: notified %d times, want 1", line, count)
		}
	}
	if len(sent) != 2 {
		t.Errorf("distinct deposits notified: got %d, want 2", len(sent))
	}
}

func TestNotifyPayments_DuplicatesWithinSnapshot(t *testing.T) {
	ledgerStore := memory.New()
	n := &fakeNotifier{}
	o := newTestOrchestrator(t, ledgerStore, mainSubMaster(), n)

	row := snapshotRow("2024/01/10", "振込ABC入金", "10,000", "MAIN", "SUB")
	res, err := o.NotifyPayments(context.Background(), row+row)
	if err != nil {
		t.Fatalf("NotifyPayments: %v", err)
	}
	if res.Appended != 2 || len(n.sent) != 2 {
		t.Errorf("appended %d, sent %d; want 2 and 2", res.Appended, len(n.sent))
	}
}

func TestNotifyPayments_AppendedCount(t *testing.T) {
	ledgerStore := memory.New(
		[]string{"2024/01/09", "振込OLD", "100", "MAIN", "SUB", ""},
	)
	masterStore := memory.New(
		[]string{"MAIN", "SUB", "", "", "OFF"},
		[]string{"SAVINGS", "JOINT", "Family", "", "ON"},
	)
	n := &fakeNotifier{}
	o := newTestOrchestrator(t, ledgerStore, masterStore, n)

	raw := snapshotRow("2024/01/09", "振込OLD", "100", "MAIN", "SUB") + // already ledgered
		snapshotRow("2024/01/10", "振込NEW", "200", "MAIN", "SUB") + // new, notifications off
		snapshotRow("2024/01/10", "振込FAM", "300", "SAVINGS", "JOINT") + // new, notified under alias
		snapshotRow("2024/01/10", "振込X", "400", "UNKNOWN", "SUB") + // unmatched
		`<tr><td>short</td></tr>`

	res, err := o.NotifyPayments(context.Background(), raw)
	if err != nil {
		t.Fatalf("NotifyPayments: %v", err)
	}

	if res.Parsed != 4 || res.Skipped != 1 {
		t.Errorf("parsed %d, skipped %d; want 4 and 1", res.Parsed, res.Skipped)
	}
	if res.Duplicates != 1 || res.Unmatched != 1 || res.Appended != 2 || res.Notified != 1 {
		t.Errorf("got %+v", res)
	}
	if ledgerStore.Len() != 3 {
		t.Errorf("ledger rows: got %d, want 3", ledgerStore.Len())
	}
	if len(n.sent) != 1 || !strings.HasPrefix(n.sent[0].Headline, "Family") {
		t.Errorf("sent %d payloads, want one headed by the alias", len(n.sent))
	}
}

func TestNotifyPayments_StoreFailures(t *testing.T) {
	raw := snapshotRow("2024/01/10", "振込ABC入金", "10,000", "MAIN", "SUB")

	tests := []struct {
		name      string
		setup     func(l, m *memory.Store)
		wantStage Stage
		wantErr   error
	}{
		{"ledger read", func(l, _ *memory.Store) { l.ReadErr = errors.New("down") }, StageReadLedger, api.ErrStoreRead},
		{"master read", func(_, m *memory.Store) { m.ReadErr = errors.New("down") }, StageReadMaster, api.ErrStoreRead},
		{"ledger append", func(l, _ *memory.Store) { l.AppendErr = errors.New("down") }, StageAppendLedger, api.ErrStoreWrite},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ledgerStore, masterStore := memory.New(), mainSubMaster()
			tc.setup(ledgerStore, masterStore)
			o := newTestOrchestrator(t, ledgerStore, masterStore, &fakeNotifier{})

			_, err := o.NotifyPayments(context.Background(), raw)

			var passErr *PassError
			if !errors.As(err, &passErr) {
				t.Fatalf("error: got %v, want *PassError", err)
			}
			if passErr.Stage != tc.wantStage {
				t.Errorf("stage: got %s, want %s", passErr.Stage, tc.wantStage)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error %v does not wrap %v", err, tc.wantErr)
			}
			if tc.wantStage == StageAppendLedger && passErr.Processed != 1 {
				t.Errorf("processed: got %d, want 1", passErr.Processed)
			}
		})
	}
}

func TestSyncAccountMaster(t *testing.T) {
	masterStore := memory.New([]string{"BANK", "A", "Alias", ":bank:", "ON"})
	o := newTestOrchestrator(t, memory.New(), masterStore, nil)

	listings := []api.AccountListing{
		{Account: "BANK", SubAccounts: []string{"A", "B"}},
		{Account: "CARD", SubAccounts: []string{"C"}},
	}

	res, err := o.SyncAccountMaster(context.Background(), listings)
	if err != nil {
		t.Fatalf("SyncAccountMaster: %v", err)
	}
	if res.Listed != 3 || len(res.Added) != 2 {
		t.Errorf("listed %d, added %d; want 3 and 2", res.Listed, len(res.Added))
	}

	rows, _ := masterStore.ReadRows(context.Background())
	if got := strings.Join(rows[0], ","); got != "BANK,A,Alias,:bank:,ON" {
		t.Errorf("existing entry changed: %q", got)
	}
	for _, r := range rows[1:] {
		if r[4] != api.SwitchOff || r[2] != "" || r[3] != "" {
			t.Errorf("new entry not disabled with empty alias/icon: %q", r)
		}
	}

	res, err = o.SyncAccountMaster(context.Background(), listings)
	if err != nil {
		t.Fatalf("second SyncAccountMaster: %v", err)
	}
	if len(res.Added) != 0 || masterStore.Len() != 3 {
		t.Errorf("second sync added %d, store has %d rows", len(res.Added), masterStore.Len())
	}
}
