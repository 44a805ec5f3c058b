package device

// AD structure types carrying a device name.
const (
	adTypeShortenedLocalName = 0x08
	adTypeCompleteLocalName  = 0x09
)

// LocalName extracts the advertised name from a raw advertisement
// payload. A complete name wins over a shortened one; a malformed
// structure ends the walk.
func LocalName(packet []byte) string {
	var shortened string
	for i := 0; i+1 < len(packet); {
		length := int(packet[i])
		if length == 0 || i+1+length > len(packet) {
			break
		}
		data := packet[i+2 : i+1+length]
		switch packet[i+1] {
		case adTypeCompleteLocalName:
			return string(data)
		case adTypeShortenedLocalName:
			shortened = string(data)
		}
		i += 1 + length
	}
	return shortened
}
