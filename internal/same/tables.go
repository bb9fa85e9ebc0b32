package same

// Originator identifies who started an activation.
type Originator string

const (
	OriginatorEAS Originator = "EAS" // broadcast station or cable system
	OriginatorCIV Originator = "CIV" // civil authorities
	OriginatorWXR Originator = "WXR" // National Weather Service
	OriginatorPEP Originator = "PEP" // Primary Entry Point system
	OriginatorEAN Originator = "EAN" // Emergency Action Notification network, retired
)

var originatorNames = map[Originator]string{
	OriginatorEAS: "EAS Participant",
	OriginatorCIV: "Civil Authorities",
	OriginatorWXR: "National Weather Service",
	OriginatorPEP: "Primary Entry Point System",
	OriginatorEAN: "Emergency Action Notification Network",
}

// Valid reports whether o is a known originator code.
func (o Originator) Valid() bool {
	_, ok := originatorNames[o]
	return ok
}

// Name returns the descriptive name of o.
func (o Originator) Name() string {
	if name, ok := originatorNames[o]; ok {
		return name
	}
	return "Unknown Originator"
}

// Significance classifies an event by the last letter of its code.
type Significance string

const (
	SignificanceWarning   Significance = "warning"
	SignificanceWatch     Significance = "watch"
	SignificanceStatement Significance = "statement"
	SignificanceEmergency Significance = "emergency"
	SignificanceTest      Significance = "test"
	SignificanceOther     Significance = "other"
)

var eventNames = map[string]string{
	// national
	"EAN": "Emergency Action Notification",
	"EAT": "Emergency Action Termination",
	"NIC": "National Information Center",
	"NPT": "National Periodic Test",
	"NAT": "National Audible Test",
	"NST": "National Silent Test",
	"RMT": "Required Monthly Test",
	"RWT": "Required Weekly Test",
	"DMO": "Practice/Demo Warning",
	"ADR": "Administrative Message",
	"NMN": "Network Message Notification",

	// state and local
	"AVA": "Avalanche Watch",
	"AVW": "Avalanche Warning",
	"BLU": "Blue Alert",
	"BZW": "Blizzard Warning",
	"CAE": "Child Abduction Emergency",
	"CDW": "Civil Danger Warning",
	"CEM": "Civil Emergency Message",
	"CFA": "Coastal Flood Watch",
	"CFW": "Coastal Flood Warning",
	"DSW": "Dust Storm Warning",
	"EQW": "Earthquake Warning",
	"EVI": "Evacuation Immediate",
	"EWW": "Extreme Wind Warning",
	"FFA": "Flash Flood Watch",
	"FFS": "Flash Flood Statement",
	"FFW": "Flash Flood Warning",
	"FLA": "Flood Watch",
	"FLS": "Flood Statement",
	"FLW": "Flood Warning",
	"FRW": "Fire Warning",
	"FSW": "Flash Freeze Warning",
	"FZW": "Freeze Warning",
	"HLS": "Hurricane Local Statement",
	"HMW": "Hazardous Materials Warning",
	"HUA": "Hurricane Watch",
	"HUW": "Hurricane Warning",
	"HWA": "High Wind Watch",
	"HWW": "High Wind Warning",
	"LAE": "Local Area Emergency",
	"LEW": "Law Enforcement Warning",
	"NUW": "Nuclear Power Plant Warning",
	"RHW": "Radiological Hazard Warning",
	"SMW": "Special Marine Warning",
	"SPS": "Special Weather Statement",
	"SPW": "Shelter in Place Warning",
	"SQW": "Snow Squall Warning",
	"SSA": "Storm Surge Watch",
	"SSW": "Storm Surge Warning",
	"SVA": "Severe Thunderstorm Watch",
	"SVR": "Severe Thunderstorm Warning",
	"SVS": "Severe Weather Statement",
	"TOA": "Tornado Watch",
	"TOE": "911 Telephone Outage Emergency",
	"TOR": "Tornado Warning",
	"TRA": "Tropical Storm Watch",
	"TRW": "Tropical Storm Warning",
	"TSA": "Tsunami Watch",
	"TSW": "Tsunami Warning",
	"VOW": "Volcano Warning",
	"WSA": "Winter Storm Watch",
	"WSW": "Winter Storm Warning",

	// NOAA Weather Radio transmitter control
	"TXB": "Transmitter Backup On",
	"TXF": "Transmitter Carrier Off",
	"TXO": "Transmitter Carrier On",
	"TXP": "Transmitter Primary On",
}

// KnownEvent reports whether code is a known event code.
func KnownEvent(code string) bool {
	_, ok := eventNames[code]
	return ok
}

// EventName returns the descriptive name of an event code.
func EventName(code string) string {
	if name, ok := eventNames[code]; ok {
		return name
	}
	return "Unknown Event"
}

// EventSignificance derives the significance of an event code.
func EventSignificance(code string) Significance {
	switch code {
	case "RWT", "RMT", "NPT", "NAT", "NST", "DMO":
		return SignificanceTest
	case "EAN", "CAE", "CEM", "LAE", "TOE", "EVI":
		return SignificanceEmergency
	case "TOR", "SVR":
		return SignificanceWarning
	}
	if len(code) != 3 {
		return SignificanceOther
	}
	switch code[2] {
	case 'W':
		return SignificanceWarning
	case 'A':
		return SignificanceWatch
	case 'S':
		return SignificanceStatement
	case 'E':
		return SignificanceEmergency
	case 'T':
		return SignificanceTest
	}
	return SignificanceOther
}

// stateCodes maps FIPS state codes to postal abbreviations.
var stateCodes = map[string]string{
	"00": "ALL",
	"01": "AL", "02": "AK", "04": "AZ", "05": "AR", "06": "CA", "08": "CO",
	"09": "CT", "10": "DE", "11": "DC", "12": "FL", "13": "GA", "15": "HI",
	"16": "ID", "17": "IL", "18": "IN", "19": "IA", "20": "KS", "21": "KY",
	"22": "LA", "23": "ME", "24": "MD", "25": "MA", "26": "MI", "27": "MN",
	"28": "MS", "29": "MO", "30": "MT", "31": "NE", "32": "NV", "33": "NH",
	"34": "NJ", "35": "NM", "36": "NY", "37": "NC", "38": "ND", "39": "OH",
	"40": "OK", "41": "OR", "42": "PA", "44": "RI", "45": "SC", "46": "SD",
	"47": "TN", "48": "TX", "49": "UT", "50": "VT", "51": "VA", "53": "WA",
	"54": "WV", "55": "WI", "56": "WY",
	"60": "AS", "66": "GU", "69": "MP", "72": "PR", "78": "VI",
}

// StateAbbreviation returns the postal abbreviation of a FIPS state code,
// or the code itself when unknown.
func StateAbbreviation(code string) string {
	if abbr, ok := stateCodes[code]; ok {
		return abbr
	}
	return code
}
