package charger

import "github.com/farouk15160/evocharger/internal/codec"

var (
	currentAC  = codec.Scale{Factor: 0.1, Min: 0, Max: 500}
	voltageOut = codec.Scale{Factor: 0.1, Min: 0, Max: 10000}
	currentOut = codec.Scale{Factor: 0.1, Min: 0, Max: 1500}

	// telemetry decodes the full 16 bit range
	deciUnit    = codec.Scale{Factor: 0.1, Min: 0, Max: 6553.5}
	centiUnit   = codec.Scale{Factor: 0.01, Min: 0, Max: 655.35}
	temperature = codec.Scale{Factor: 0.005188, Offset: -40, Min: -40, Max: 300}
)

// Ctl, 0x618, BMS -> charger every 100 ms.
var (
	ctlCanEnable = codec.Signal{Name: "can_enable", Field: codec.Flag(0, 7)}
	ctlLED3      = codec.Signal{Name: "led3", Field: codec.Flag(0, 3)}
	ctlIacMax    = codec.Signal{Name: "iac_max", Unit: "A", Field: codec.Uint16BE(1), Scale: currentAC}
	ctlVoutMax   = codec.Signal{Name: "vout_max", Unit: "V", Field: codec.Uint16BE(3), Scale: voltageOut}
	ctlIoutMax   = codec.Signal{Name: "iout_max", Unit: "A", Field: codec.Uint16BE(5), Scale: currentOut}

	ctlDesc = codec.MustDescriptor(IDCtl, "ctl", 8,
		ctlCanEnable, ctlLED3, ctlIacMax, ctlVoutMax, ctlIoutMax)
)

// Ctl enables the charger and sets its limits.
type Ctl struct {
	CanEnable bool    `json:"can_enable"`
	LED3      bool    `json:"led3"`
	IacMaxA   float64 `json:"iac_max_a"`
	VoutMaxV  float64 `json:"vout_max_v"`
	IoutMaxA  float64 `json:"iout_max_a"`
}

func DecodeCtl(payload []byte) (Ctl, error) {
	if err := ctlDesc.Check(payload); err != nil {
		return Ctl{}, err
	}
	return Ctl{
		CanEnable: ctlCanEnable.Bool(payload),
		LED3:      ctlLED3.Bool(payload),
		IacMaxA:   ctlIacMax.Physical(payload),
		VoutMaxV:  ctlVoutMax.Physical(payload),
		IoutMaxA:  ctlIoutMax.Physical(payload),
	}, nil
}

func (Ctl) CANID() uint32 { return IDCtl }

// Payload clamps every limit to its hardware range before scaling. D7 is
// always zero.
func (c Ctl) Payload() ([]byte, error) {
	return ctlDesc.Build().
		Bool(ctlCanEnable, c.CanEnable).
		Bool(ctlLED3, c.LED3).
		Physical(ctlIacMax, c.IacMaxA).
		Physical(ctlVoutMax, c.VoutMaxV).
		Physical(ctlIoutMax, c.IoutMaxA).
		Payload()
}

// Stat, 0x610, every 1000 ms. Only D0 is used.
var (
	statPowerEnable = codec.Signal{Name: "power_enable", Field: codec.Flag(0, 7)}
	statErrorLatch  = codec.Signal{Name: "error_latch", Field: codec.Flag(0, 6)}
	statWarnLimit   = codec.Signal{Name: "warn_limit", Field: codec.Flag(0, 5)}
	statLimTemp     = codec.Signal{Name: "lim_temp", Field: codec.Flag(0, 3)}
	statWarningHV   = codec.Signal{Name: "warning_hv", Field: codec.Flag(0, 1)}
	statBulks       = codec.Signal{Name: "bulks", Field: codec.Flag(0, 0)}

	statDesc = codec.MustDescriptor(IDStat, "stat", 8,
		statPowerEnable, statErrorLatch, statWarnLimit, statLimTemp, statWarningHV, statBulks)
)

type Stat struct {
	PowerEnable bool `json:"power_enable"` // hardware enable pin
	ErrorLatch  bool `json:"error_latch"`
	WarnLimit   bool `json:"warn_limit"`
	LimTemp     bool `json:"lim_temp"` // de-rating
	WarningHV   bool `json:"warning_hv"`
	Bulks       bool `json:"bulks"`
}

func DecodeStat(payload []byte) (Stat, error) {
	if err := statDesc.Check(payload); err != nil {
		return Stat{}, err
	}
	return Stat{
		PowerEnable: statPowerEnable.Bool(payload),
		ErrorLatch:  statErrorLatch.Bool(payload),
		WarnLimit:   statWarnLimit.Bool(payload),
		LimTemp:     statLimTemp.Bool(payload),
		WarningHV:   statWarningHV.Bool(payload),
		Bulks:       statBulks.Bool(payload),
	}, nil
}

func (Stat) CANID() uint32 { return IDStat }

func (s Stat) Payload() ([]byte, error) {
	return statDesc.Build().
		Bool(statPowerEnable, s.PowerEnable).
		Bool(statErrorLatch, s.ErrorLatch).
		Bool(statWarnLimit, s.WarnLimit).
		Bool(statLimTemp, s.LimTemp).
		Bool(statWarningHV, s.WarningHV).
		Bool(statBulks, s.Bulks).
		Payload()
}

// Act1, 0x611, every 100 ms.
var (
	act1Iac  = codec.Signal{Name: "iac", Unit: "A", Field: codec.Uint16BE(0), Scale: deciUnit}
	act1Temp = codec.Signal{Name: "temp", Unit: "C", Field: codec.Uint16BE(2), Scale: temperature}
	act1Vout = codec.Signal{Name: "vout", Unit: "V", Field: codec.Uint16BE(4), Scale: deciUnit}
	act1Iout = codec.Signal{Name: "iout", Unit: "A", Field: codec.Uint16BE(6), Scale: deciUnit}

	act1Desc = codec.MustDescriptor(IDAct1, "act1", 8, act1Iac, act1Temp, act1Vout, act1Iout)
)

type Act1 struct {
	IacA  float64 `json:"iac_a"`
	TempC float64 `json:"temp_c"` // power stage
	VoutV float64 `json:"vout_v"`
	IoutA float64 `json:"iout_a"`
}

func DecodeAct1(payload []byte) (Act1, error) {
	if err := act1Desc.Check(payload); err != nil {
		return Act1{}, err
	}
	return Act1{
		IacA:  act1Iac.Physical(payload),
		TempC: act1Temp.Physical(payload),
		VoutV: act1Vout.Physical(payload),
		IoutA: act1Iout.Physical(payload),
	}, nil
}

func (Act1) CANID() uint32 { return IDAct1 }

func (a Act1) Payload() ([]byte, error) {
	return act1Desc.Build().
		Physical(act1Iac, a.IacA).
		Physical(act1Temp, a.TempC).
		Physical(act1Vout, a.VoutV).
		Physical(act1Iout, a.IoutA).
		Payload()
}

// OutputPowerW is the DC output power.
func (a Act1) OutputPowerW() float64 {
	return a.VoutV * a.IoutA
}

// Act2, 0x614, every 1000 ms.
var (
	act2TempLogLV  = codec.Signal{Name: "temp_loglv", Unit: "C", Field: codec.Uint16BE(0), Scale: temperature}
	act2ACPower    = codec.Signal{Name: "ac_power", Unit: "kW", Field: codec.Uint16BE(2), Scale: centiUnit}
	act2ProxLimit  = codec.Signal{Name: "prox_limit", Unit: "A", Field: codec.Uint16BE(4), Scale: deciUnit}
	act2PilotLimit = codec.Signal{Name: "pilot_limit", Unit: "A", Field: codec.Uint16BE(6), Scale: deciUnit}

	act2Desc = codec.MustDescriptor(IDAct2, "act2", 8, act2TempLogLV, act2ACPower, act2ProxLimit, act2PilotLimit)
)

type Act2 struct {
	TempLogLVC  float64 `json:"temp_loglv_c"`
	ACPowerKW   float64 `json:"ac_power_kw"`
	ProxLimitA  float64 `json:"prox_limit_a"`
	PilotLimitA float64 `json:"pilot_limit_a"`
}

func DecodeAct2(payload []byte) (Act2, error) {
	if err := act2Desc.Check(payload); err != nil {
		return Act2{}, err
	}
	return Act2{
		TempLogLVC:  act2TempLogLV.Physical(payload),
		ACPowerKW:   act2ACPower.Physical(payload),
		ProxLimitA:  act2ProxLimit.Physical(payload),
		PilotLimitA: act2PilotLimit.Physical(payload),
	}, nil
}

func (Act2) CANID() uint32 { return IDAct2 }

func (a Act2) Payload() ([]byte, error) {
	return act2Desc.Build().
		Physical(act2TempLogLV, a.TempLogLVC).
		Physical(act2ACPower, a.ACPowerKW).
		Physical(act2ProxLimit, a.ProxLimitA).
		Physical(act2PilotLimit, a.PilotLimitA).
		Payload()
}

// Tst1, 0x615, every 100 ms.
var (
	tst1Ack      = codec.Signal{Name: "ack", Field: codec.Flag(0, 7)}
	tst1PrCompl  = codec.Signal{Name: "pr_compl", Field: codec.Flag(0, 6)}
	tst1PwrOK    = codec.Signal{Name: "pwr_ok", Field: codec.Flag(0, 5)}
	tst1VoutOK   = codec.Signal{Name: "vout_ok", Field: codec.Flag(0, 4)}
	tst1Neutral  = codec.Signal{Name: "neutral", Field: codec.Flag(0, 3)}
	tst1LED3     = codec.Signal{Name: "led3", Field: codec.Flag(0, 2)}
	tst1LED618   = codec.Signal{Name: "led618", Field: codec.Flag(0, 1)}
	tst1OVP      = codec.Signal{Name: "ovp", Field: codec.Flag(1, 7)}
	tst1ConnOpen = codec.Signal{Name: "conn_open", Field: codec.Flag(1, 6)}
	tst1TherFail = codec.Signal{Name: "ther_fail", Field: codec.Flag(1, 2)}
	tst1Rx618    = codec.Signal{Name: "rx618_fail", Field: codec.Flag(1, 0)}
	tst1Bulk1    = codec.Signal{Name: "bulk1_fail", Field: codec.Flag(2, 7)}
	tst1Bulk2    = codec.Signal{Name: "bulk2_fail", Field: codec.Flag(2, 6)}
	tst1Bulk3    = codec.Signal{Name: "bulk3_fail", Field: codec.Flag(2, 5)}
	tst1PumpOn   = codec.Signal{Name: "pump_on", Field: codec.Flag(2, 4)}
	tst1FanOn    = codec.Signal{Name: "fan_on", Field: codec.Flag(2, 3)}
	tst1HVRx     = codec.Signal{Name: "hv_rx_fail", Field: codec.Flag(2, 2)}
	tst1Cooling  = codec.Signal{Name: "cooling_fail", Field: codec.Flag(2, 1)}
	tst1Rx619    = codec.Signal{Name: "rx619_fail", Field: codec.Flag(2, 0)}
	tst1Neutro1  = codec.Signal{Name: "neutro1", Field: codec.Flag(3, 7)}
	tst1Neutro2  = codec.Signal{Name: "neutro2", Field: codec.Flag(3, 6)}
	tst1ThreePh  = codec.Signal{Name: "three_phase", Field: codec.Flag(3, 5)}
	tst1IacFail  = codec.Signal{Name: "iac_fail", Field: codec.Flag(3, 2)}
	tst1Ignition = codec.Signal{Name: "ignition", Field: codec.Flag(3, 1)}
	tst1LVBatNP  = codec.Signal{Name: "lv_battery_np", Field: codec.Flag(3, 0)}
	tst1ProxOK   = codec.Signal{Name: "prox_ok", Field: codec.Flag(4, 7)}
	tst1PilotOK  = codec.Signal{Name: "pilot_ok", Field: codec.Flag(4, 5)}
	tst1S2OK     = codec.Signal{Name: "s2_ok", Field: codec.Flag(4, 3)}
	tst1Hours    = codec.Signal{Name: "cnt_hours", Unit: "h", Field: codec.Uint16BE(6)}

	tst1Desc = codec.MustDescriptor(IDTst1, "tst1", 8,
		tst1Ack, tst1PrCompl, tst1PwrOK, tst1VoutOK, tst1Neutral, tst1LED3, tst1LED618,
		tst1OVP, tst1ConnOpen, tst1TherFail, tst1Rx618,
		tst1Bulk1, tst1Bulk2, tst1Bulk3, tst1PumpOn, tst1FanOn, tst1HVRx, tst1Cooling, tst1Rx619,
		tst1Neutro1, tst1Neutro2, tst1ThreePh, tst1IacFail, tst1Ignition, tst1LVBatNP,
		tst1ProxOK, tst1PilotOK, tst1S2OK,
		tst1Hours)
)

// Tst1 holds the charger's test and diagnostic flags.
type Tst1 struct {
	Ack      bool `json:"ack"`      // AC mains connected
	PrCompl  bool `json:"pr_compl"` // precharge completed
	PwrOK    bool `json:"pwr_ok"`
	VoutOK   bool `json:"vout_ok"`
	Neutral  bool `json:"neutral"`
	LED3     bool `json:"led3"`
	LED618   bool `json:"led618"`
	OVP      bool `json:"ovp"`
	ConnOpen bool `json:"conn_open"`
	TherFail bool `json:"ther_fail"`
	// control message timeout, more than 600 ms without 0x618
	Rx618Fail   bool `json:"rx618_fail"`
	Bulk1Fail   bool `json:"bulk1_fail"`
	Bulk2Fail   bool `json:"bulk2_fail"`
	Bulk3Fail   bool `json:"bulk3_fail"`
	PumpOn      bool `json:"pump_on"`
	FanOn       bool `json:"fan_on"`
	HVRxFail    bool `json:"hv_rx_fail"`
	CoolingFail bool `json:"cooling_fail"`
	Rx619Fail   bool `json:"rx619_fail"`
	Neutro1     bool `json:"neutro1"`
	Neutro2     bool `json:"neutro2"`
	ThreePhase  bool `json:"three_phase"`
	IacFail     bool `json:"iac_fail"`
	Ignition    bool `json:"ignition"`
	LVBatteryNP bool `json:"lv_battery_np"`
	ProxOK      bool `json:"prox_ok"`
	PilotOK     bool `json:"pilot_ok"`
	S2OK        bool `json:"s2_ok"`

	Hours uint16 `json:"cnt_hours"`
}

func DecodeTst1(payload []byte) (Tst1, error) {
	if err := tst1Desc.Check(payload); err != nil {
		return Tst1{}, err
	}
	return Tst1{
		Ack:         tst1Ack.Bool(payload),
		PrCompl:     tst1PrCompl.Bool(payload),
		PwrOK:       tst1PwrOK.Bool(payload),
		VoutOK:      tst1VoutOK.Bool(payload),
		Neutral:     tst1Neutral.Bool(payload),
		LED3:        tst1LED3.Bool(payload),
		LED618:      tst1LED618.Bool(payload),
		OVP:         tst1OVP.Bool(payload),
		ConnOpen:    tst1ConnOpen.Bool(payload),
		TherFail:    tst1TherFail.Bool(payload),
		Rx618Fail:   tst1Rx618.Bool(payload),
		Bulk1Fail:   tst1Bulk1.Bool(payload),
		Bulk2Fail:   tst1Bulk2.Bool(payload),
		Bulk3Fail:   tst1Bulk3.Bool(payload),
		PumpOn:      tst1PumpOn.Bool(payload),
		FanOn:       tst1FanOn.Bool(payload),
		HVRxFail:    tst1HVRx.Bool(payload),
		CoolingFail: tst1Cooling.Bool(payload),
		Rx619Fail:   tst1Rx619.Bool(payload),
		Neutro1:     tst1Neutro1.Bool(payload),
		Neutro2:     tst1Neutro2.Bool(payload),
		ThreePhase:  tst1ThreePh.Bool(payload),
		IacFail:     tst1IacFail.Bool(payload),
		Ignition:    tst1Ignition.Bool(payload),
		LVBatteryNP: tst1LVBatNP.Bool(payload),
		ProxOK:      tst1ProxOK.Bool(payload),
		PilotOK:     tst1PilotOK.Bool(payload),
		S2OK:        tst1S2OK.Bool(payload),
		Hours:       tst1Hours.Raw(payload),
	}, nil
}

func (Tst1) CANID() uint32 { return IDTst1 }

func (t Tst1) Payload() ([]byte, error) {
	return tst1Desc.Build().
		Bool(tst1Ack, t.Ack).
		Bool(tst1PrCompl, t.PrCompl).
		Bool(tst1PwrOK, t.PwrOK).
		Bool(tst1VoutOK, t.VoutOK).
		Bool(tst1Neutral, t.Neutral).
		Bool(tst1LED3, t.LED3).
		Bool(tst1LED618, t.LED618).
		Bool(tst1OVP, t.OVP).
		Bool(tst1ConnOpen, t.ConnOpen).
		Bool(tst1TherFail, t.TherFail).
		Bool(tst1Rx618, t.Rx618Fail).
		Bool(tst1Bulk1, t.Bulk1Fail).
		Bool(tst1Bulk2, t.Bulk2Fail).
		Bool(tst1Bulk3, t.Bulk3Fail).
		Bool(tst1PumpOn, t.PumpOn).
		Bool(tst1FanOn, t.FanOn).
		Bool(tst1HVRx, t.HVRxFail).
		Bool(tst1Cooling, t.CoolingFail).
		Bool(tst1Rx619, t.Rx619Fail).
		Bool(tst1Neutro1, t.Neutro1).
		Bool(tst1Neutro2, t.Neutro2).
		Bool(tst1ThreePh, t.ThreePhase).
		Bool(tst1IacFail, t.IacFail).
		Bool(tst1Ignition, t.Ignition).
		Bool(tst1LVBatNP, t.LVBatteryNP).
		Bool(tst1ProxOK, t.ProxOK).
		Bool(tst1PilotOK, t.PilotOK).
		Bool(tst1S2OK, t.S2OK).
		Raw(tst1Hours, t.Hours).
		Payload()
}
