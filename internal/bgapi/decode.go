package bgapi

import "fmt"

// decodeEvent maps an event frame to its typed form. Unknown or
// truncated frames yield an error; the reader logs and drops them.
func decodeEvent(f frame) (Event, error) {
	switch {
	case f.class == classSystem && f.method == evtSystemBoot:
		if len(f.payload) < 6 {
			return nil, truncated(f)
		}
		return Boot{
			Major: getUint16(f.payload[0:2]),
			Minor: getUint16(f.payload[2:4]),
			Patch: getUint16(f.payload[4:6]),
		}, nil

	case f.class == classScanner && f.method == evtScannerLegacyReport:
		// rssi, event_flags, address[6], address_type, data_len, data
		if len(f.payload) < 10 {
			return nil, truncated(f)
		}
		dataLen := int(f.payload[9])
		if len(f.payload) < 10+dataLen {
			return nil, truncated(f)
		}
		return AdvertisementReport{
			RSSI:        int8(f.payload[0]),
			EventFlags:  f.payload[1],
			Address:     formatAddress(f.payload[2:8]),
			AddressType: f.payload[8],
			Data:        append([]byte(nil), f.payload[10:10+dataLen]...),
		}, nil

	case f.class == classConnection && f.method == evtConnectionOpened:
		// address[6], address_type, connection
		if len(f.payload) < 8 {
			return nil, truncated(f)
		}
		return ConnectionOpened{
			Address:    formatAddress(f.payload[0:6]),
			Connection: f.payload[7],
		}, nil

	case f.class == classConnection && f.method == evtConnectionClosed:
		// reason, connection
		if len(f.payload) < 3 {
			return nil, truncated(f)
		}
		return ConnectionClosed{
			Reason:     getUint16(f.payload[0:2]),
			Connection: f.payload[2],
		}, nil

	case f.class == classGATT && f.method == evtGATTService:
		// connection, service, uuid_len, uuid
		if len(f.payload) < 6 {
			return nil, truncated(f)
		}
		uuidLen := int(f.payload[5])
		if len(f.payload) < 6+uuidLen {
			return nil, truncated(f)
		}
		return ServiceDiscovered{
			Connection: f.payload[0],
			Service:    getUint32(f.payload[1:5]),
			UUID:       append([]byte(nil), f.payload[6:6+uuidLen]...),
		}, nil

	case f.class == classGATT && f.method == evtGATTCharacteristic:
		// connection, characteristic, properties, uuid_len, uuid
		if len(f.payload) < 5 {
			return nil, truncated(f)
		}
		uuidLen := int(f.payload[4])
		if len(f.payload) < 5+uuidLen {
			return nil, truncated(f)
		}
		return CharacteristicDiscovered{
			Connection:     f.payload[0],
			Characteristic: getUint16(f.payload[1:3]),
			Properties:     f.payload[3],
			UUID:           append([]byte(nil), f.payload[5:5+uuidLen]...),
		}, nil

	case f.class == classGATT && f.method == evtGATTValue:
		// connection, characteristic, att_opcode, offset, value_len, value
		if len(f.payload) < 7 {
			return nil, truncated(f)
		}
		valueLen := int(f.payload[6])
		if len(f.payload) < 7+valueLen {
			return nil, truncated(f)
		}
		return CharacteristicValue{
			Connection:     f.payload[0],
			Characteristic: getUint16(f.payload[1:3]),
			AttOpcode:      f.payload[3],
			Value:          append([]byte(nil), f.payload[7:7+valueLen]...),
		}, nil

	case f.class == classGATT && f.method == evtGATTProcedureDone:
		// connection, result
		if len(f.payload) < 3 {
			return nil, truncated(f)
		}
		return ProcedureCompleted{
			Connection: f.payload[0],
			Result:     getUint16(f.payload[1:3]),
		}, nil
	}

	return nil, fmt.Errorf("bgapi: unknown event class=%#02x method=%#02x", f.class, f.method)
}

func truncated(f frame) error {
	return fmt.Errorf("bgapi: truncated frame class=%#02x method=%#02x len=%d", f.class, f.method, len(f.payload))
}
