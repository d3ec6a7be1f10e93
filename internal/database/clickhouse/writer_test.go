package clickhouse

import (
	"testing"
	"time"

	"github.com/farouk15160/evocharger/internal/database"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRows(t *testing.T) {
	Convey("A sample is flattened into one row per signal", t, func() {
		at := time.Unix(1700000000, 0)
		rows := Rows(database.Sample{
			Time:    at,
			ID:      0x611,
			Message: "act1",
			Values:  map[string]float64{"vout": 400, "iac": 10, "iout": 20},
		})
		So(len(rows), ShouldEqual, 3)
		So(rows[0], ShouldResemble, Row{Time: at, CANID: 0x611, Message: "act1", Signal: "iac", Value: 10})
		So(rows[1].Signal, ShouldEqual, "iout")
		So(rows[2].Signal, ShouldEqual, "vout")
	})

	Convey("Empty samples produce no rows", t, func() {
		So(Rows(database.Sample{}), ShouldBeEmpty)
	})

	Convey("The table name ends up in the DDL", t, func() {
		So(CreateTableQuery("evo_signals"), ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS evo_signals")
	})
}
