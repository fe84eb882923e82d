package adapters

import (
	"fmt"
	"strconv"
	"strings"
)

// BBL is the borough-block-lot key some datasets require instead of the
// building id. It is derived from the composite 10-digit parcel id:
// 1 digit borough code, 5 digit block, 4 digit lot.
type BBL struct {
	Borough string
	Block   string
	Lot     string
}

var boroughNames = map[int]string{
	1: "MANHATTAN",
	2: "BRONX",
	3: "BROOKLYN",
	4: "QUEENS",
	5: "STATEN ISLAND",
}

// ParseBBL derives the BBL from a composite parcel id. Sources that need a
// BBL skip their fetch when the parcel id cannot be parsed.
func ParseBBL(parcelID string) (BBL, error) {
	cleaned := strings.TrimSpace(parcelID)
	if len(cleaned) != 10 {
		return BBL{}, fmt.Errorf("parcel id %q is not a 10-digit borough-block-lot", parcelID)
	}
	if _, err := strconv.ParseUint(cleaned, 10, 64); err != nil {
		return BBL{}, fmt.Errorf("parcel id %q is not numeric: %w", parcelID, err)
	}

	code, _ := strconv.Atoi(cleaned[:1])
	borough, ok := boroughNames[code]
	if !ok {
		return BBL{}, fmt.Errorf("parcel id %q has unknown borough code %d", parcelID, code)
	}

	// Blocks and lots are stored zero-padded in the composite id but queried
	// unpadded in most datasets.
	block := strings.TrimLeft(cleaned[1:6], "0")
	lot := strings.TrimLeft(cleaned[6:], "0")
	if block == "" || lot == "" {
		return BBL{}, fmt.Errorf("parcel id %q has an empty block or lot", parcelID)
	}

	return BBL{Borough: borough, Block: block, Lot: lot}, nil
}
