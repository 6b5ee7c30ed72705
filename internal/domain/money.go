package domain

// BalanceDue returns the COD amount still outstanding after collected cash and the shipping fee,
// floored at zero. All values are minor currency units.
func BalanceDue(codAmount, collectedAmount, shippingFee int64) int64 {
	due := codAmount - collectedAmount - shippingFee
	if due < 0 {
		return 0
	}
	return due
}
