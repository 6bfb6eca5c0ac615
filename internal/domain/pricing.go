package domain

// Fee schedule in INR minor units (paise). Prices are always computed server
// side; client-declared amounts are only accepted on flows that verify the
// payment signature before the order exists.
const (
	// NotaryBaseFeeDigital is the flat charge for an e-notarisation.
	NotaryBaseFeeDigital int64 = 39900
	// NotaryBaseFeePhysical is the flat charge for a physical notarisation.
	NotaryBaseFeePhysical int64 = 79900
	// NotaryRegistrationFee applies when the document must also be registered.
	NotaryRegistrationFee int64 = 100000
	// StampDutyMultiplier scales the declared stamp value (whole rupees) into paise.
	StampDutyMultiplier int64 = 100

	// PriorityBookingBase is the standard consultation charge.
	PriorityBookingBase int64 = 9900
	// PriorityBookingFee is the surcharge for a same-day slot.
	PriorityBookingFee int64 = 9900

	// ReviewFallbackPrice applies to unrecognised turnaround requests.
	ReviewFallbackPrice int64 = 49900
)

// reviewTurnaroundPrices keys the review price by requested turnaround hours.
var reviewTurnaroundPrices = map[int]int64{
	24:  99900,
	48:  79900,
	72:  59900,
	168: 49900,
}

// NotaryTotal computes the full notary charge from the booking parameters.
// stampValue is expressed in whole rupees as entered by the customer.
func NotaryTotal(notaryType NotaryType, stampValue int64, requiresRegistration bool) int64 {
	base := NotaryBaseFeeDigital
	if notaryType == NotaryTypePhysical {
		base = NotaryBaseFeePhysical
	}
	total := base + stampValue*StampDutyMultiplier
	if requiresRegistration {
		total += NotaryRegistrationFee
	}
	return total
}

// PriorityBookingTotal computes the priority consultation charge.
func PriorityBookingTotal() int64 {
	return PriorityBookingBase + PriorityBookingFee
}

// ReviewPrice returns the document review price for the requested turnaround
// in hours, falling back to the slowest tier for unknown values.
func ReviewPrice(turnaroundHours int) int64 {
	if price, ok := reviewTurnaroundPrices[turnaroundHours]; ok {
		return price
	}
	return ReviewFallbackPrice
}
