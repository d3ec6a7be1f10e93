package charger

import "github.com/farouk15160/evocharger/internal/codec"

// Tst2, 0x616, sent once when the charger is switched on. D0 and D1 pack
// the setup options; bit positions follow the vendor start-bit table.
var (
	tst2Baudrate     = codec.Signal{Name: "baudrate", Field: codec.Bits(0, 6, 2)}
	tst2IDType       = codec.Signal{Name: "id_type", Field: codec.Flag(0, 5)}
	tst2IacControl   = codec.Signal{Name: "iac_control", Field: codec.Bits(0, 3, 2)}
	tst2Range        = codec.Signal{Name: "range", Field: codec.Bits(0, 1, 2)}
	tst2ThreePhase   = codec.Signal{Name: "three_phase", Field: codec.Flag(0, 0)}
	tst2Slave        = codec.Signal{Name: "slave", Field: codec.Flag(1, 7)}
	tst2EVCModel     = codec.Signal{Name: "evc_model", Field: codec.Flag(1, 6)}
	tst2IDSetting    = codec.Signal{Name: "id_setting", Field: codec.Bits(1, 2, 4)}
	tst2ParallelCtrl = codec.Signal{Name: "parallel_ctrl", Field: codec.Flag(1, 1)}
	tst2AirCooler    = codec.Signal{Name: "air_cooler", Field: codec.Flag(1, 0)}
	tst2IacmMax      = codec.Signal{Name: "iacm_max", Unit: "A", Field: codec.Uint8(2), Scale: codec.Scale{Factor: 0.2, Min: 0, Max: 51}}
	tst2VoutMax      = codec.Signal{Name: "vout_max", Unit: "V", Field: codec.Uint16BE(3), Scale: codec.Scale{Factor: 0.1, Min: 0, Max: 1000}}
	tst2IoutMax      = codec.Signal{Name: "iout_max", Unit: "A", Field: codec.Uint16BE(5), Scale: codec.Scale{Factor: 0.1, Min: 0, Max: 150}}
	tst2Password     = codec.Signal{Name: "password", Field: codec.Uint8(7)}

	tst2Desc = codec.MustDescriptor(IDTst2, "tst2", 8,
		tst2Baudrate, tst2IDType, tst2IacControl, tst2Range, tst2ThreePhase,
		tst2Slave, tst2EVCModel, tst2IDSetting, tst2ParallelCtrl, tst2AirCooler,
		tst2IacmMax, tst2VoutMax, tst2IoutMax, tst2Password)
)

// FactoryPassword is the setup password of a charger as delivered.
const FactoryPassword = 0xA5

// Tst2 is the charger configuration.
type Tst2 struct {
	Baudrate   Baudrate   `json:"baudrate"`
	IDType     IDType     `json:"id_type"`
	IacControl IacControl `json:"iac_control"`
	Range      Range      `json:"range"`
	// true for three-phase, false for a Y grid
	ThreePhase bool `json:"three_phase"`

	Slave        bool      `json:"slave"`
	EVCModel     EVCModel  `json:"evc_model"`
	IDSetting    IDSetting `json:"id_setting"`
	ParallelCtrl bool      `json:"parallel_ctrl"`
	AirCooler    bool      `json:"air_cooler"`

	IacmMaxA float64 `json:"iacm_max_a"`
	VoutMaxV float64 `json:"vout_max_v"`
	IoutMaxA float64 `json:"iout_max_a"`
	Password uint8   `json:"password"`
}

func DecodeTst2(payload []byte) (Tst2, error) {
	if err := tst2Desc.Check(payload); err != nil {
		return Tst2{}, err
	}
	return Tst2{
		Baudrate:     Baudrate(tst2Baudrate.Raw(payload)),
		IDType:       IDType(tst2IDType.Raw(payload)),
		IacControl:   IacControl(tst2IacControl.Raw(payload)),
		Range:        Range(tst2Range.Raw(payload)),
		ThreePhase:   tst2ThreePhase.Bool(payload),
		Slave:        tst2Slave.Bool(payload),
		EVCModel:     EVCModel(tst2EVCModel.Raw(payload)),
		IDSetting:    IDSetting(tst2IDSetting.Raw(payload)),
		ParallelCtrl: tst2ParallelCtrl.Bool(payload),
		AirCooler:    tst2AirCooler.Bool(payload),
		IacmMaxA:     tst2IacmMax.Physical(payload),
		VoutMaxV:     tst2VoutMax.Physical(payload),
		IoutMaxA:     tst2IoutMax.Physical(payload),
		Password:     uint8(tst2Password.Raw(payload)),
	}, nil
}

func (Tst2) CANID() uint32 { return IDTst2 }

func (t Tst2) Payload() ([]byte, error) {
	return tst2Desc.Build().
		Raw(tst2Baudrate, uint16(t.Baudrate)).
		Raw(tst2IDType, uint16(t.IDType)).
		Raw(tst2IacControl, uint16(t.IacControl)).
		Raw(tst2Range, uint16(t.Range)).
		Bool(tst2ThreePhase, t.ThreePhase).
		Bool(tst2Slave, t.Slave).
		Raw(tst2EVCModel, uint16(t.EVCModel)).
		Raw(tst2IDSetting, uint16(t.IDSetting)).
		Bool(tst2ParallelCtrl, t.ParallelCtrl).
		Bool(tst2AirCooler, t.AirCooler).
		Physical(tst2IacmMax, t.IacmMaxA).
		Physical(tst2VoutMax, t.VoutMaxV).
		Physical(tst2IoutMax, t.IoutMaxA).
		Raw(tst2Password, uint16(t.Password)).
		Payload()
}
