package service

import "time"

// Status is the alert tier of a stock line.
type Status string

const (
	StatusNormal   Status = "Normal"
	StatusAlert    Status = "Alert"
	StatusCritical Status = "Critical"
	StatusExpired  Status = "Expired"
)

// Classify turns a stock record and its lot's expiry date into an alert
// tier. Precedence is fixed: an expired lot classifies as Expired whatever
// the quantity. Thresholds are inclusive, so a quantity equal to the alert
// threshold is Alert, not Normal.
func Classify(currentQuantity, alertThreshold, minimalThreshold int, expiryDate, now time.Time) Status {
	if expiryDate.Before(now) {
		return StatusExpired
	}
	if currentQuantity <= minimalThreshold {
		return StatusCritical
	}
	if currentQuantity <= alertThreshold {
		return StatusAlert
	}
	return StatusNormal
}
