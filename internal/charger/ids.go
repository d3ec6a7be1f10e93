// Package charger describes every CAN message of the EVO charger protocol
// and converts between raw payloads and typed values.
//
// Level 1 carries real-time control and telemetry, level 2 the on-demand
// diagnostics, level 3 the extended service telemetry and level 4 the
// setup message sent once at power-on.
package charger

// CAN identifiers.
const (
	IDCtl  uint32 = 0x618 // BMS -> charger
	IDStat uint32 = 0x610
	IDAct1 uint32 = 0x611
	IDAct2 uint32 = 0x614
	IDTst1 uint32 = 0x615

	IDReq          uint32 = 0x61B // BMS -> charger
	IDFaultPassive uint32 = 0x61C
	IDFaultActive  uint32 = 0x61D
	IDSoftware     uint32 = 0x61E
	IDSerialNumber uint32 = 0x61F

	IDAct3  uint32 = 0x712
	IDTemp  uint32 = 0x713
	IDAct4  uint32 = 0x714
	IDStst1 uint32 = 0x715

	IDTst2 uint32 = 0x616
)

// requestIDHigh is the fixed upper byte of every requested identifier.
const requestIDHigh = 0x06
