package charger

import "github.com/farouk15160/evocharger/internal/codec"

var (
	fanVoltage = codec.Scale{Factor: 0.1, Min: 0, Max: 30}
	moduleAC   = codec.Scale{Factor: 0.1, Min: 0, Max: 50}
)

// Act3, 0x712, every 100 ms.
var (
	act3FanVoltage = codec.Signal{Name: "fan_voltage", Unit: "V", Field: codec.Uint16BE(0), Scale: fanVoltage}
	act3Iacm1      = codec.Signal{Name: "iacm1", Unit: "A", Field: codec.Uint16BE(2), Scale: moduleAC}
	act3Iacm2      = codec.Signal{Name: "iacm2", Unit: "A", Field: codec.Uint16BE(4), Scale: moduleAC}
	act3Iacm3      = codec.Signal{Name: "iacm3", Unit: "A", Field: codec.Uint16BE(6), Scale: moduleAC}

	act3Desc = codec.MustDescriptor(IDAct3, "act3", 8, act3FanVoltage, act3Iacm1, act3Iacm2, act3Iacm3)
)

// Act3 carries the fan supply and the AC input current of each module.
type Act3 struct {
	FanVoltageV float64 `json:"fan_voltage_v"`
	Iacm1A      float64 `json:"iacm1_a"`
	Iacm2A      float64 `json:"iacm2_a"`
	Iacm3A      float64 `json:"iacm3_a"`
}

func DecodeAct3(payload []byte) (Act3, error) {
	if err := act3Desc.Check(payload); err != nil {
		return Act3{}, err
	}
	return Act3{
		FanVoltageV: act3FanVoltage.Physical(payload),
		Iacm1A:      act3Iacm1.Physical(payload),
		Iacm2A:      act3Iacm2.Physical(payload),
		Iacm3A:      act3Iacm3.Physical(payload),
	}, nil
}

func (Act3) CANID() uint32 { return IDAct3 }

// Payload clamps the fan voltage to 0..30 V and module currents to 0..50 A.
func (a Act3) Payload() ([]byte, error) {
	return act3Desc.Build().
		Physical(act3FanVoltage, a.FanVoltageV).
		Physical(act3Iacm1, a.Iacm1A).
		Physical(act3Iacm2, a.Iacm2A).
		Physical(act3Iacm3, a.Iacm3A).
		Payload()
}

// TotalACCurrentA sums the three module currents.
func (a Act3) TotalACCurrentA() float64 {
	return a.Iacm1A + a.Iacm2A + a.Iacm3A
}

// Temp, 0x713, every 100 ms.
var (
	tempLogHV  = codec.Signal{Name: "temp_loghv", Unit: "C", Field: codec.Uint16BE(0), Scale: temperature}
	tempPower1 = codec.Signal{Name: "temp_power1", Unit: "C", Field: codec.Uint16BE(2), Scale: temperature}
	tempPower2 = codec.Signal{Name: "temp_power2", Unit: "C", Field: codec.Uint16BE(4), Scale: temperature}
	tempPower3 = codec.Signal{Name: "temp_power3", Unit: "C", Field: codec.Uint16BE(6), Scale: temperature}

	tempDesc = codec.MustDescriptor(IDTemp, "temp", 8, tempLogHV, tempPower1, tempPower2, tempPower3)
)

type Temp struct {
	LogHVC  float64 `json:"temp_loghv_c"`
	Power1C float64 `json:"temp_power1_c"`
	Power2C float64 `json:"temp_power2_c"`
	Power3C float64 `json:"temp_power3_c"`
}

func DecodeTemp(payload []byte) (Temp, error) {
	if err := tempDesc.Check(payload); err != nil {
		return Temp{}, err
	}
	return Temp{
		LogHVC:  tempLogHV.Physical(payload),
		Power1C: tempPower1.Physical(payload),
		Power2C: tempPower2.Physical(payload),
		Power3C: tempPower3.Physical(payload),
	}, nil
}

func (Temp) CANID() uint32 { return IDTemp }

func (t Temp) Payload() ([]byte, error) {
	return tempDesc.Build().
		Physical(tempLogHV, t.LogHVC).
		Physical(tempPower1, t.Power1C).
		Physical(tempPower2, t.Power2C).
		Physical(tempPower3, t.Power3C).
		Payload()
}

// Act4, 0x714, every 100 ms. The output channel currents are unscaled.
var (
	act4TempLogFan = codec.Signal{Name: "temp_logfan", Unit: "C", Field: codec.Uint16BE(0), Scale: temperature}
	act4Iout1      = codec.Signal{Name: "iout1_raw", Field: codec.Uint16BE(2)}
	act4Iout2      = codec.Signal{Name: "iout2_raw", Field: codec.Uint16BE(4)}
	act4Iout3      = codec.Signal{Name: "iout3_raw", Field: codec.Uint16BE(6)}

	act4Desc = codec.MustDescriptor(IDAct4, "act4", 8, act4TempLogFan, act4Iout1, act4Iout2, act4Iout3)
)

type Act4 struct {
	TempLogFanC float64 `json:"temp_logfan_c"`
	Iout1Raw    uint16  `json:"iout1_raw"`
	Iout2Raw    uint16  `json:"iout2_raw"`
	Iout3Raw    uint16  `json:"iout3_raw"`
}

func DecodeAct4(payload []byte) (Act4, error) {
	if err := act4Desc.Check(payload); err != nil {
		return Act4{}, err
	}
	return Act4{
		TempLogFanC: act4TempLogFan.Physical(payload),
		Iout1Raw:    act4Iout1.Raw(payload),
		Iout2Raw:    act4Iout2.Raw(payload),
		Iout3Raw:    act4Iout3.Raw(payload),
	}, nil
}

func (Act4) CANID() uint32 { return IDAct4 }

func (a Act4) Payload() ([]byte, error) {
	return act4Desc.Build().
		Physical(act4TempLogFan, a.TempLogFanC).
		Raw(act4Iout1, a.Iout1Raw).
		Raw(act4Iout2, a.Iout2Raw).
		Raw(act4Iout3, a.Iout3Raw).
		Payload()
}

// Stst1, 0x715, every 100 ms: extra real-time diagnostics.
var (
	stst1PFCEnable    = codec.Signal{Name: "pfc_enable", Field: codec.Flag(0, 2)}
	stst1LogTempHigh  = codec.Signal{Name: "log_temp_high", Field: codec.Flag(1, 5)}
	stst1LogTempLow   = codec.Signal{Name: "log_temp_low", Field: codec.Flag(1, 4)}
	stst1UVLOLog      = codec.Signal{Name: "uvlo_log", Field: codec.Flag(1, 3)}
	stst1TherLowFail  = codec.Signal{Name: "ther_low_fail", Field: codec.Flag(1, 2)}
	stst1Rx618Fail    = codec.Signal{Name: "rx618_fail", Field: codec.Flag(1, 0)}
	stst1Bulk1Fail    = codec.Signal{Name: "bulk1_fail", Field: codec.Flag(2, 7)}
	stst1Bulk2Fail    = codec.Signal{Name: "bulk2_fail", Field: codec.Flag(2, 6)}
	stst1Bulk3Fail    = codec.Signal{Name: "bulk3_fail", Field: codec.Flag(2, 5)}
	stst1CoolingFail1 = codec.Signal{Name: "cooling_fail1", Field: codec.Flag(2, 4)}
	stst1CoolingFail2 = codec.Signal{Name: "cooling_fail2", Field: codec.Flag(2, 3)}
	stst1CoolingFail3 = codec.Signal{Name: "cooling_fail3", Field: codec.Flag(2, 2)}
	stst1UVLOLogLV    = codec.Signal{Name: "uvlo_log_lv", Field: codec.Flag(3, 3)}
	stst1BatOver      = codec.Signal{Name: "bat_over", Field: codec.Flag(3, 1)}
	stst1BatUnder     = codec.Signal{Name: "bat_under", Field: codec.Flag(3, 0)}

	stst1Desc = codec.MustDescriptor(IDStst1, "stst1", 8,
		stst1PFCEnable,
		stst1LogTempHigh, stst1LogTempLow, stst1UVLOLog, stst1TherLowFail, stst1Rx618Fail,
		stst1Bulk1Fail, stst1Bulk2Fail, stst1Bulk3Fail, stst1CoolingFail1, stst1CoolingFail2, stst1CoolingFail3,
		stst1UVLOLogLV, stst1BatOver, stst1BatUnder)
)

type Stst1 struct {
	PFCEnable    bool `json:"pfc_enable"`
	LogTempHigh  bool `json:"log_temp_high"`
	LogTempLow   bool `json:"log_temp_low"`
	UVLOLog      bool `json:"uvlo_log"`
	TherLowFail  bool `json:"ther_low_fail"` // sensor reads -40 C
	Rx618Fail    bool `json:"rx618_fail"`
	Bulk1Fail    bool `json:"bulk1_fail"`
	Bulk2Fail    bool `json:"bulk2_fail"`
	Bulk3Fail    bool `json:"bulk3_fail"`
	CoolingFail1 bool `json:"cooling_fail1"`
	CoolingFail2 bool `json:"cooling_fail2"`
	CoolingFail3 bool `json:"cooling_fail3"`
	UVLOLogLV    bool `json:"uvlo_log_lv"`
	// always-hot battery above 32 V or below 8 V, only with EN61851/SAE J1772
	BatOver  bool `json:"bat_over"`
	BatUnder bool `json:"bat_under"`
}

func DecodeStst1(payload []byte) (Stst1, error) {
	if err := stst1Desc.Check(payload); err != nil {
		return Stst1{}, err
	}
	return Stst1{
		PFCEnable:    stst1PFCEnable.Bool(payload),
		LogTempHigh:  stst1LogTempHigh.Bool(payload),
		LogTempLow:   stst1LogTempLow.Bool(payload),
		UVLOLog:      stst1UVLOLog.Bool(payload),
		TherLowFail:  stst1TherLowFail.Bool(payload),
		Rx618Fail:    stst1Rx618Fail.Bool(payload),
		Bulk1Fail:    stst1Bulk1Fail.Bool(payload),
		Bulk2Fail:    stst1Bulk2Fail.Bool(payload),
		Bulk3Fail:    stst1Bulk3Fail.Bool(payload),
		CoolingFail1: stst1CoolingFail1.Bool(payload),
		CoolingFail2: stst1CoolingFail2.Bool(payload),
		CoolingFail3: stst1CoolingFail3.Bool(payload),
		UVLOLogLV:    stst1UVLOLogLV.Bool(payload),
		BatOver:      stst1BatOver.Bool(payload),
		BatUnder:     stst1BatUnder.Bool(payload),
	}, nil
}

func (Stst1) CANID() uint32 { return IDStst1 }

func (s Stst1) Payload() ([]byte, error) {
	return stst1Desc.Build().
		Bool(stst1PFCEnable, s.PFCEnable).
		Bool(stst1LogTempHigh, s.LogTempHigh).
		Bool(stst1LogTempLow, s.LogTempLow).
		Bool(stst1UVLOLog, s.UVLOLog).
		Bool(stst1TherLowFail, s.TherLowFail).
		Bool(stst1Rx618Fail, s.Rx618Fail).
		Bool(stst1Bulk1Fail, s.Bulk1Fail).
		Bool(stst1Bulk2Fail, s.Bulk2Fail).
		Bool(stst1Bulk3Fail, s.Bulk3Fail).
		Bool(stst1CoolingFail1, s.CoolingFail1).
		Bool(stst1CoolingFail2, s.CoolingFail2).
		Bool(stst1CoolingFail3, s.CoolingFail3).
		Bool(stst1UVLOLogLV, s.UVLOLogLV).
		Bool(stst1BatOver, s.BatOver).
		Bool(stst1BatUnder, s.BatUnder).
		Payload()
}
