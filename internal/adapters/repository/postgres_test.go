package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorefix/internal/domain/model"
)

var scoreColumns = []string{"doc_key", "wallet_address", "score", "recorded_at", "display_name", "ip_address", "merged_from", "merged_at"}

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock, ""), mock
}

func TestPostgresStore(t *testing.T) {
	Convey("Given a Postgres store on a mock pool", t, func() {
		ctx := context.Background()
		s, mock := newMockPostgresStore(t)

		Convey("When migrating", func() {
			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scores`).
				WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

			So(s.Migrate(ctx), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("When enumerating", func() {
			ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
			mock.ExpectQuery(`SELECT doc_key, wallet_address, COALESCE\(score, 0\).* FROM scores ORDER BY doc_key COLLATE "C"`).
				WillReturnRows(pgxmock.NewRows(scoreColumns).
					AddRow("0xA8F4", "0xA8F4", int64(50), &ts, "", "", []string(nil), (*time.Time)(nil)).
					AddRow("0xa8f4", "0xa8f4", int64(120), (*time.Time)(nil), "0xa8f4", "1.2.3.4", []string{"x"}, &ts))

			recs, err := s.Enumerate(ctx)

			Convey("Then rows map onto records in order", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].Key, ShouldEqual, "0xA8F4")
				So(recs[0].Score, ShouldEqual, 50)
				So(recs[0].Timestamp.Equal(ts), ShouldBeTrue)
				So(recs[0].MergedAt, ShouldBeNil)
				So(recs[1].IPAddress, ShouldEqual, "1.2.3.4")
				So(recs[1].MergedFrom, ShouldResemble, []string{"x"})
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the enumerate query fails", func() {
			mock.ExpectQuery(`SELECT doc_key`).WillReturnError(errors.New("connection reset"))

			_, err := s.Enumerate(ctx)

			Convey("Then a ReadError is returned", func() {
				var re *ReadError
				So(errors.As(err, &re), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "connection reset")
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When putting a record", func() {
			rec := model.ScoreRecord{WalletAddress: "0xa8f4", Score: 120, MergedFrom: []string{"0xA8F4", "0xa8f4"}}
			mock.ExpectExec(`INSERT INTO scores .* ON CONFLICT \(doc_key\) DO UPDATE SET`).
				WithArgs("0xa8f4", "0xa8f4", int64(120), pgxmock.AnyArg(), "", "", []string{"0xA8F4", "0xa8f4"}, pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))

			So(s.Put(ctx, "0xa8f4", rec), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("When a put fails", func() {
			mock.ExpectExec(`INSERT INTO scores`).WillReturnError(errors.New("disk full"))

			err := s.Put(ctx, "0xa8f4", model.ScoreRecord{})

			Convey("Then a WriteError names the key", func() {
				var we *WriteError
				So(errors.As(err, &we), ShouldBeTrue)
				So(we.Key, ShouldEqual, "0xa8f4")
			})
		})

		Convey("When deleting", func() {
			mock.ExpectExec(`DELETE FROM scores WHERE doc_key = \$1`).
				WithArgs("0xA8F4").
				WillReturnResult(pgxmock.NewResult("DELETE", 0))

			So(s.Delete(ctx, "0xA8F4"), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("When a delete fails", func() {
			mock.ExpectExec(`DELETE FROM scores`).WillReturnError(errors.New("lock timeout"))

			err := s.Delete(ctx, "0xA8F4")
			So(errors.Is(err, ErrDelete), ShouldBeTrue)
		})

		Convey("When asking for server time", func() {
			now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
			mock.ExpectQuery(`SELECT now\(\)`).
				WillReturnRows(pgxmock.NewRows([]string{"now"}).AddRow(now))

			got, err := s.Now(ctx)
			So(err, ShouldBeNil)
			So(got.Equal(now), ShouldBeTrue)
		})
	})
}
