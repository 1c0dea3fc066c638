package airquality

import "math"

// pm25Band maps an AQI band onto a PM2.5 band. PM2.5 values are in tenths
// of µg/m³ so interpolation stays in integers.
type pm25Band struct {
	aqiLow  int // exclusive for every band but the first
	aqiHigh int // inclusive; 0 means open-ended
	pmLow   int
	pmSpan  int
	width   int
}

// EPA breakpoints. Consecutive bands share an edge: AQI 50 ends the first
// band and is also the base of the second.
var pm25Bands = []pm25Band{
	{aqiLow: 0, aqiHigh: 50, pmLow: 0, pmSpan: 120, width: 50},
	{aqiLow: 50, aqiHigh: 100, pmLow: 120, pmSpan: 234, width: 50},
	{aqiLow: 100, aqiHigh: 150, pmLow: 354, pmSpan: 195, width: 50},
	{aqiLow: 150, aqiHigh: 200, pmLow: 554, pmSpan: 946, width: 50},
	{aqiLow: 200, aqiHigh: 300, pmLow: 1504, pmSpan: 996, width: 100},
	{aqiLow: 300, aqiHigh: 0, pmLow: 2504, pmSpan: 2496, width: 200},
}

// EstimatePM25FromAQI estimates the PM2.5 concentration in µg/m³ for a US
// AQI value by linear interpolation inside the EPA band, truncated to an
// integer. The last band is open-ended; estimates that do not fit in an int
// are reported as math.MaxInt.
func EstimatePM25FromAQI(aqi int) (int, error) {
	if aqi < 0 {
		return 0, ErrNegativeAQI
	}

	var band pm25Band
	for _, b := range pm25Bands {
		band = b
		if b.aqiHigh == 0 || aqi <= b.aqiHigh {
			break
		}
	}

	// pmLow + (aqi-aqiLow)*pmSpan/width in tenths, then to whole units.
	// The offset is split into whole multiples of the divisor so the
	// product cannot overflow; results beyond int saturate.
	divisor := band.width * 10
	whole, rem := (aqi-band.aqiLow)/divisor, (aqi-band.aqiLow)%divisor
	tail := (band.pmLow*band.width + rem*band.pmSpan) / divisor
	if whole > (math.MaxInt-tail)/band.pmSpan {
		return math.MaxInt, nil
	}
	return whole*band.pmSpan + tail, nil
}
