package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/aquamarine/internal/device"
)

func TestParseHexValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"plain", "ABCD", []byte{0xAB, 0xCD}, false},
		{"lowercase", "abcd", []byte{0xAB, 0xCD}, false},
		{"odd length gets leading zero", "ABC", []byte{0x0A, 0xBC}, false},
		{"single digit", "1", []byte{0x01}, false},
		{"spaces and separators", "AB CD:EF-01", []byte{0xAB, 0xCD, 0xEF, 0x01}, false},
		{"0x prefix", "0xABCD", []byte{0xAB, 0xCD}, false},
		{"not hex", "XYZ", nil, true},
		{"empty", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHexValue(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindCharacteristic(t *testing.T) {
	snap := device.DeviceSnapshot{
		Services: []device.ServiceSnapshot{
			{UUID: "1800", Characteristics: []device.CharacteristicSnapshot{
				{UUID: "2A00", Handle: 0x11},
			}},
			{UUID: "180F", Characteristics: []device.CharacteristicSnapshot{
				{UUID: "2A19", Handle: 0x21},
			}},
		},
	}

	ch, ok := findCharacteristic(snap, "2A19")
	require.True(t, ok)
	assert.Equal(t, uint16(0x21), ch.Handle)

	_, ok = findCharacteristic(snap, "2AFF")
	assert.False(t, ok)
}
