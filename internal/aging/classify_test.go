package aging

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func daysAgo(n int) time.Time {
	return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
}

func receivable(id, clientID int64, balance string, overdue int) Receivable {
	return Receivable{
		InvoiceID:  id,
		Number:     "INV-" + strconv.FormatInt(id, 10),
		ClientID:   clientID,
		ClientName: "Client " + strconv.FormatInt(clientID, 10),
		DueDate:    daysAgo(overdue),
		BalanceDue: d(balance),
		Status:     "sent",
	}
}

func TestBucketBoundaries(t *testing.T) {
	cases := map[int]string{
		-5: BucketCurrent,
		0:  BucketCurrent,
		30: BucketCurrent,
		31: Bucket31To60,
		60: Bucket31To60,
		61: Bucket61To90,
		90: Bucket61To90,
		91: BucketOver90,
	}
	for days, want := range cases {
		require.Equal(t, want, BucketFor(days), "days=%d", days)
	}
}

func TestClassifyBoundaryInvoices(t *testing.T) {
	report := Classify([]Receivable{
		receivable(1, 1, "10", 30),
		receivable(2, 1, "20", 31),
		receivable(3, 1, "30", 90),
		receivable(4, 1, "40", 91),
	}, today)

	got := map[string]string{}
	for _, row := range report.Invoices {
		got[row.Number] = row.Bucket
	}
	require.Equal(t, map[string]string{
		"INV-1": BucketCurrent,
		"INV-2": Bucket31To60,
		"INV-3": Bucket61To90,
		"INV-4": BucketOver90,
	}, got)
}

func TestClientWithOldInvoiceIsHighRisk(t *testing.T) {
	report := Classify([]Receivable{
		receivable(1, 7, "1000", 10),
		receivable(2, 7, "2000", 70),
		receivable(3, 7, "500", 130),
	}, today)

	require.Len(t, report.Clients, 1)
	c := report.Clients[0]
	require.Equal(t, "3500.00", c.TotalOutstanding.StringFixed(2))
	require.Equal(t, "500.00", c.Over90.StringFixed(2))
	require.Equal(t, "2000.00", c.Days61To90.StringFixed(2))
	require.Equal(t, "1000.00", c.Current.StringFixed(2))
	require.Equal(t, 3, c.InvoiceCount)
	require.Equal(t, 130, c.OldestDaysOverdue)
	require.Equal(t, RiskHigh, c.Risk)
	require.Equal(t, ActionUrgentCollections, c.RecommendedAction)

	require.Equal(t, []string{BucketCurrent, Bucket31To60, Bucket61To90, BucketOver90},
		[]string{report.Buckets[0].Name, report.Buckets[1].Name, report.Buckets[2].Name, report.Buckets[3].Name})
	require.Equal(t, 1, report.Buckets[0].Count)
	require.Equal(t, 0, report.Buckets[1].Count)
	require.True(t, report.Buckets[1].Balance.IsZero())
	require.Equal(t, 1, report.Buckets[3].Count)
	require.Equal(t, "3500.00", report.TotalOutstanding.StringFixed(2))
}

func TestAssessRiskBranches(t *testing.T) {
	cases := []struct {
		name   string
		over90 string
		total  string
		oldest int
		tier   RiskTier
		action string
	}{
		{"majority over 90", "60", "100", 95, RiskHigh, ActionUrgentCollections},
		{"exactly half over 90", "50", "100", 95, RiskMedium, ActionFinalNotice},
		{"older than 120", "0", "100", 121, RiskHigh, ActionUrgentCollections},
		{"quarter over 90", "25", "100", 91, RiskMedium, ActionFinalNotice},
		{"older than 60", "0", "100", 61, RiskMedium, ActionFinalNotice},
		{"older than 30", "0", "100", 31, RiskMedium, ActionFriendlyReminder},
		{"exactly 30", "0", "100", 30, RiskLow, ActionMonitor},
		{"zero total", "0", "0", 0, RiskLow, ActionMonitor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, action := AssessRisk(d(tc.over90), d(tc.total), tc.oldest)
			require.Equal(t, tc.tier, tier)
			require.Equal(t, tc.action, action)
		})
	}
}

func TestClientsSortedByTierThenExposure(t *testing.T) {
	report := Classify([]Receivable{
		receivable(1, 10, "9000", 5),  // low
		receivable(2, 20, "5000", 45), // medium
		receivable(3, 30, "7000", 45), // medium
		receivable(4, 40, "100", 150), // high
		receivable(5, 25, "7000", 45), // medium, ties with client 30
	}, today)

	ids := make([]int64, len(report.Clients))
	for i, c := range report.Clients {
		ids[i] = c.ClientID
	}
	require.Equal(t, []int64{40, 25, 30, 20, 10}, ids)
}

func TestClassifyExcludesClosedAndPaid(t *testing.T) {
	void := receivable(2, 1, "50", 40)
	void.Status = "void"
	cancelled := receivable(3, 1, "50", 40)
	cancelled.Status = "cancelled"
	paid := receivable(5, 1, "0", 40)

	report := Classify([]Receivable{receivable(1, 1, "25", 40), void, cancelled, paid}, today)
	require.Len(t, report.Invoices, 1)
	require.Equal(t, "25.00", report.TotalOutstanding.StringFixed(2))
}

func TestClassifyBucketsDraftsWithBalance(t *testing.T) {
	draft := receivable(4, 1, "250", 0)
	draft.Status = "draft"

	report := Classify([]Receivable{draft}, today)
	require.Len(t, report.Invoices, 1)
	require.Equal(t, BucketCurrent, report.Invoices[0].Bucket)
	require.Equal(t, 1, report.Buckets[0].Count)
	require.Equal(t, "250.00", report.TotalOutstanding.StringFixed(2))
}

func TestBucketsPartitionOutstanding(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var recs []Receivable
	for i := int64(1); i <= 200; i++ {
		recs = append(recs, receivable(i, i%9+1, decimal.NewFromInt(rng.Int63n(100000)+1).Shift(-2).String(), rng.Intn(400)-30))
	}
	report := Classify(recs, today)

	count := 0
	sum := decimal.Zero
	for _, b := range report.Buckets {
		count += b.Count
		sum = sum.Add(b.Balance)
	}
	require.Equal(t, len(recs), count)
	require.True(t, sum.Equal(report.TotalOutstanding))

	clientSum := decimal.Zero
	for _, c := range report.Clients {
		clientSum = clientSum.Add(c.Current).Add(c.Days31To60).Add(c.Days61To90).Add(c.Over90)
		require.True(t, c.TotalOutstanding.Equal(c.Current.Add(c.Days31To60).Add(c.Days61To90).Add(c.Over90)))
	}
	require.True(t, clientSum.Equal(sum))
}

func TestRiskIsOrderIndependent(t *testing.T) {
	recs := []Receivable{
		receivable(1, 3, "120.50", 95),
		receivable(2, 3, "80.25", 15),
		receivable(3, 4, "300", 65),
		receivable(4, 4, "10", 140),
		receivable(5, 5, "999.99", 2),
	}
	forward := Classify(recs, today)

	reversed := make([]Receivable, len(recs))
	for i := range recs {
		reversed[len(recs)-1-i] = recs[i]
	}
	backward := Classify(reversed, today)

	require.Len(t, backward.Clients, len(forward.Clients))
	for i := range forward.Clients {
		f, b := forward.Clients[i], backward.Clients[i]
		require.Equal(t, f.ClientID, b.ClientID)
		require.Equal(t, f.Risk, b.Risk)
		require.Equal(t, f.RecommendedAction, b.RecommendedAction)
		require.Equal(t, f.OldestDaysOverdue, b.OldestDaysOverdue)
		require.True(t, f.TotalOutstanding.Equal(b.TotalOutstanding))
	}
}

func TestClientsCSVIsByteStable(t *testing.T) {
	recs := []Receivable{
		receivable(1, 7, "1000", 10),
		receivable(2, 7, "2000", 70),
		receivable(3, 7, "500", 130),
	}
	for i := range recs {
		recs[i].ClientName = `Acme "West" Builders`
	}
	report := Classify(recs, today)

	var first, second bytes.Buffer
	require.NoError(t, WriteClientsCSV(&first, report))
	require.NoError(t, WriteClientsCSV(&second, Classify(recs, today)))
	require.Equal(t, first.Bytes(), second.Bytes())

	want := `"Client","Risk","Invoices","Oldest Days Overdue","Current","31-60","61-90","90+","Total Outstanding","Recommended Action"` + "\n" +
		`"Acme ""West"" Builders","high",3,130,1000.00,0.00,2000.00,500.00,3500.00,"Urgent: escalate to collections and suspend further work"` + "\n"
	require.Equal(t, want, first.String())
}

func TestInvoicesCSVOrderedByAge(t *testing.T) {
	report := Classify([]Receivable{
		receivable(1, 1, "10", 5),
		receivable(2, 1, "20.5", 95),
	}, today)
	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesCSV(&buf, report))
	want := `"Invoice","Client","Due Date","Days Overdue","Bucket","Balance Due"` + "\n" +
		`"INV-2","Client 1","2026-01-26",95,"90+",20.50` + "\n" +
		`"INV-1","Client 1","2026-04-26",5,"Current",10.00` + "\n"
	require.Equal(t, want, buf.String())
}
