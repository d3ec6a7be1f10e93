package codec

// NoDataByte fills every byte after the first in a "no data" frame.
const NoDataByte = 0xFF

// IsNoData reports whether payload is the reserved "no data" frame: eight
// bytes with D1..D7 all 0xFF. D0 is ignored. It must be checked before any
// field of the frame is interpreted.
func IsNoData(payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	for _, b := range payload[1:8] {
		if b != NoDataByte {
			return false
		}
	}
	return true
}

// NoData returns a fresh "no data" payload with the given first byte.
func NoData(first byte) []byte {
	p := []byte{first, NoDataByte, NoDataByte, NoDataByte, NoDataByte, NoDataByte, NoDataByte, NoDataByte}
	return p
}
