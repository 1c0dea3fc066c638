package airquality

// Level is an air quality severity, ordered from best to worst.
type Level int

// Severity levels.
const (
	LevelGood Level = iota
	LevelModerate
	LevelUnhealthyForSensitive
	LevelUnhealthy
	LevelVeryUnhealthy
)

// LevelFromAQI classifies a US AQI value. Bands are inclusive at the lower
// bound: 0-50, 51-100, 101-150, 151-200, 201+.
func LevelFromAQI(aqi int) Level {
	switch {
	case aqi <= 50:
		return LevelGood
	case aqi <= 100:
		return LevelModerate
	case aqi <= 150:
		return LevelUnhealthyForSensitive
	case aqi <= 200:
		return LevelUnhealthy
	default:
		return LevelVeryUnhealthy
	}
}

// LevelFromPM25 classifies a PM2.5 concentration in µg/m³ using the Thai
// PCD bands: 0-25, 26-37, 38-50, 51-90, 91+. Not interchangeable with
// LevelFromAQI.
func LevelFromPM25(pm25 int) Level {
	switch {
	case pm25 <= 25:
		return LevelGood
	case pm25 <= 37:
		return LevelModerate
	case pm25 <= 50:
		return LevelUnhealthyForSensitive
	case pm25 <= 90:
		return LevelUnhealthy
	default:
		return LevelVeryUnhealthy
	}
}

type levelText struct {
	name    string
	emoji   string
	label   string
	warning string
}

var levelTexts = map[Level]levelText{
	LevelGood: {
		name:    "good",
		emoji:   "🟢",
		label:   "ดีมาก (Good)",
		warning: "✅ คุณภาพอากาศดี ปลอดภัยสำหรับกิจกรรมกลางแจ้ง",
	},
	LevelModerate: {
		name:    "moderate",
		emoji:   "🟡",
		label:   "ปานกลาง (Moderate)",
		warning: "⚠️ คนไวต่ออากาศควรระวัง",
	},
	LevelUnhealthyForSensitive: {
		name:    "unhealthy_for_sensitive",
		emoji:   "🟠",
		label:   "เริ่มมีผลกระทบต่อสุขภาพ",
		warning: "⚠️ ⚠️ กลุ่มเสี่ยงควรลดกิจกรรมกลางแจ้ง\nเด็ก ผู้สูงอายุ ผู้ป่วยโรคหัวใจและปอด",
	},
	LevelUnhealthy: {
		name:    "unhealthy",
		emoji:   "🔴",
		label:   "มีผลกระทบต่อสุขภาพ",
		warning: "🚨 อันตราย! ทุกคนควรหลีกเลี่ยงกิจกรรมกลางแจ้ง\nสวมหน้ากาก N95 หากจำเป็นต้องออกไป",
	},
	LevelVeryUnhealthy: {
		name:    "very_unhealthy",
		emoji:   "🟣",
		label:   "มีผลกระทบต่อสุขภาพมาก",
		warning: "🚨🚨 อันตรายมาก! ห้ามออกกลางแจ้ง\nอยู่ในบ้านและปิดหน้าต่างทุกบาน\nใช้เครื่องฟอกอากาศ",
	},
}

// Emoji returns the colored circle for the level.
func (l Level) Emoji() string { return levelTexts[l].emoji }

// Description returns the display label.
func (l Level) Description() string { return levelTexts[l].label }

// HealthWarning returns the health advice, possibly multi-line.
func (l Level) HealthWarning() string { return levelTexts[l].warning }

// String returns a stable identifier for logs and JSON.
func (l Level) String() string {
	if t, ok := levelTexts[l]; ok {
		return t.name
	}
	return "unknown"
}
