package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/farouk15160/evocharger/internal/charger"
	. "github.com/smartystreets/goconvey/convey"
)

const trace = `boot ok
CanBus Tx 0x618 80 00 A0 0F A0 00 C8 00
CanBus Rx 0x611 00 A0 30 F7 0E 10 00 AA
CanBus Rx 0x61E 53 57 33 32 32 35 41 35
CanBus Rx 0x611 00 A0
CanBus Rx 0x123 00 00 00 00 00 00 00 00
`

func TestDecodeTrace(t *testing.T) {
	Convey("Trace lines are decoded one JSON object per frame", t, func() {
		var buf bytes.Buffer
		frames, failed, err := decodeTrace(strings.NewReader(trace), json.NewEncoder(&buf))
		So(err, ShouldBeNil)
		So(frames, ShouldEqual, 3)
		So(failed, ShouldEqual, 2)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		So(len(lines), ShouldEqual, 3)

		var first map[string]any
		So(json.Unmarshal([]byte(lines[0]), &first), ShouldBeNil)
		So(first["dir"], ShouldEqual, "Tx")
		So(first["name"], ShouldEqual, "ctl")
		So(first["data"].(map[string]any)["can_enable"], ShouldBeTrue)

		So(lines[2], ShouldContainSubstring, `"version":"SW3225A5"`)
	})
}

func TestSingle(t *testing.T) {
	Convey("A single frame is given as id and hex payload", t, func() {
		f, err := single("0x61B", "80 00 06 1E")
		So(err, ShouldBeNil)
		d, err := decode("", f)
		So(err, ShouldBeNil)
		So(d.ID, ShouldEqual, "0x61B")
		So(d.Raw, ShouldEqual, "80 00 06 1E")
		So(d.Data, ShouldResemble, charger.Req{Enable: true, Type: charger.RequestSoftware})

		_, err = single("xyz", "00")
		So(err, ShouldNotBeNil)
		_, err = single("618", "0")
		So(err, ShouldNotBeNil)
	})
}
