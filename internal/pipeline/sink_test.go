package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"athena-backend/internal/profile"
	localstore "athena-backend/internal/shared/storage/object/local"
)

func testRow() SummaryRow {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return summaryRow("run-1", profile.Enriched{Profile: profile.Profile{
		CompanyName:      "Acme",
		ProblemStatement: "slow invoices",
		MarketData:       profile.Market{TAM: profile.Float64(2e9)},
	}}, "REVIEW", 0.61, &now, now.Add(time.Minute))
}

func TestPGSinkInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	row := testRow()
	mock.ExpectExec(`INSERT INTO run_summaries .* ON CONFLICT \(run_id\) DO NOTHING`).
		WithArgs(
			"run-1",
			"Acme",
			[]byte(`[]`),
			"slow invoices",
			"",
			sqlmock.AnyArg(), // market_data
			sqlmock.AnyArg(), // traction
			sqlmock.AnyArg(), // financials
			"REVIEW",
			0.61,
			row.CreatedAt,
			row.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := &PGSink{DB: db}
	if err := sink.Append(context.Background(), row); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestObjectSinkWritesJSON(t *testing.T) {
	store := localstore.New(t.TempDir())
	sink := &ObjectSink{Store: store}

	if err := sink.Append(context.Background(), testRow()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rc, err := store.Open(context.Background(), "summaries/run-1.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	var got SummaryRow
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CompanyName != "Acme" || got.Decision != "REVIEW" || profile.Value(got.MarketData.TAM, 0) != 2e9 {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestSummaryRowDefaults(t *testing.T) {
	now := time.Now().UTC()
	row := summaryRow("run-9", profile.Enriched{}, "PASS", 0.2, nil, now)
	if row.CompanyName != "Unknown" || row.Founders == nil || !row.CreatedAt.Equal(now) {
		t.Fatalf("unexpected defaults %+v", row)
	}
}
