// Package weathercode maps WMO weather interpretation codes, as reported by
// Open-Meteo, to the categories the rest of the system cares about.
package weathercode

// Description returns a short human-readable label for a WMO weather code.
func Description(code int) string {
	switch code {
	case 0:
		return "Clear Sky"
	case 1:
		return "Mainly Clear"
	case 2:
		return "Partly Cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Fog"
	case 51, 53, 55:
		return "Drizzle"
	case 56, 57:
		return "Freezing Drizzle"
	case 61, 63, 65:
		return "Rain"
	case 66, 67:
		return "Freezing Rain"
	case 71, 73, 75:
		return "Snow"
	case 77:
		return "Snow Grains"
	case 80, 81, 82:
		return "Rain Showers"
	case 85, 86:
		return "Snow Showers"
	case 95:
		return "Thunderstorm"
	case 96, 99:
		return "Thunderstorm with Hail"
	default:
		return "Unknown"
	}
}

// IsThunderstorm reports whether the code is one of the thunderstorm codes.
func IsThunderstorm(code int) bool {
	return code == 95 || code == 96 || code == 99
}

// IsPrecipitating reports whether the code describes falling precipitation.
// Codes 51 and above cover drizzle through thunderstorm.
func IsPrecipitating(code int) bool {
	return code >= 51
}
