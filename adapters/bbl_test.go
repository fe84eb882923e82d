package adapters

import "testing"

func TestParseBBL(t *testing.T) {
	testCases := []struct {
		name     string
		parcelID string

		expected      BBL
		errorExpected bool
	}{
		{
			name:     "manhattan parcel",
			parcelID: "1008760041",
			expected: BBL{Borough: "MANHATTAN", Block: "876", Lot: "41"},
		},
		{
			name:     "brooklyn parcel",
			parcelID: "3012340056",
			expected: BBL{Borough: "BROOKLYN", Block: "1234", Lot: "56"},
		},
		{
			name:     "surrounding whitespace",
			parcelID: " 4000120001 ",
			expected: BBL{Borough: "QUEENS", Block: "12", Lot: "1"},
		},
		{
			name:          "too short",
			parcelID:      "100876",
			errorExpected: true,
		},
		{
			name:          "non numeric",
			parcelID:      "1X08760041",
			errorExpected: true,
		},
		{
			name:          "unknown borough code",
			parcelID:      "9008760041",
			errorExpected: true,
		},
		{
			name:          "zero block",
			parcelID:      "1000000041",
			errorExpected: true,
		},
		{
			name:          "empty",
			parcelID:      "",
			errorExpected: true,
		},
	}

	for _, testCase := range testCases {
		got, err := ParseBBL(testCase.parcelID)
		if testCase.errorExpected != (err != nil) {
			t.Errorf("%s: expected error: %v, got error: %v", testCase.name, testCase.errorExpected, err)
			continue
		}
		if err != nil {
			continue
		}
		if got != testCase.expected {
			t.Errorf("%s: ParseBBL = %+v, want %+v", testCase.name, got, testCase.expected)
		}
	}
}
