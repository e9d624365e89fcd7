package device

import (
	"strconv"
)

// FormatRate renders a sample rate like "100 MHz" or "1.5 kHz".
func FormatRate(hz uint64) string {
	switch {
	case hz >= 1_000_000_000:
		return trimFloat(float64(hz)/1e9) + " GHz"
	case hz >= 1_000_000:
		return trimFloat(float64(hz)/1e6) + " MHz"
	case hz >= 1_000:
		return trimFloat(float64(hz)/1e3) + " kHz"
	default:
		return strconv.FormatUint(hz, 10) + " Hz"
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
