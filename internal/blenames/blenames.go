// Package blenames maps Bluetooth SIG assigned 16-bit UUIDs to their
// registered names for display. Lookup is exact on the uppercase hex
// form used by the entity model; unknown UUIDs yield "".
package blenames

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"1802": "Immediate Alert",
	"1803": "Link Loss",
	"1804": "Tx Power",
	"1805": "Current Time",
	"180A": "Device Information",
	"180D": "Heart Rate",
	"180F": "Battery",
	"1810": "Blood Pressure",
	"1812": "Human Interface Device",
	"1816": "Cycling Speed and Cadence",
	"181A": "Environmental Sensing",
	"181C": "User Data",
	"FE95": "Xiaomi Service",
	"FEAA": "Eddystone",
}

var characteristics = map[string]string{
	"2A00": "Device Name",
	"2A01": "Appearance",
	"2A04": "Peripheral Preferred Connection Parameters",
	"2A05": "Service Changed",
	"2A19": "Battery Level",
	"2A24": "Model Number String",
	"2A25": "Serial Number String",
	"2A26": "Firmware Revision String",
	"2A27": "Hardware Revision String",
	"2A29": "Manufacturer Name String",
	"2A37": "Heart Rate Measurement",
	"2A38": "Body Sensor Location",
	"2A6E": "Temperature",
	"2A6F": "Humidity",
	"2AA6": "Central Address Resolution",
}

// Service returns the assigned name of a 16-bit service UUID, or "".
func Service(uuid string) string {
	return services[uuid]
}

// Characteristic returns the assigned name of a 16-bit characteristic
// UUID, or "".
func Characteristic(uuid string) string {
	return characteristics[uuid]
}
