package event

// LeaseCreatedPayload carries the immutable lease identity fields.
// Dates use the boundary DateLayout format.
type LeaseCreatedPayload struct {
	UserID               string  `json:"user_id"`
	CommencementDate     string  `json:"commencement_date"`
	ExpirationDate       string  `json:"expiration_date"`
	MonthlyPaymentAmount float64 `json:"monthly_payment_amount"`
}

// PaymentScheduledPayload records an amount scheduled against the lease.
// PaymentID doubles as the idempotency key for retried submissions.
type PaymentScheduledPayload struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
}

// PaymentReceivedPayload records an amount received against the lease.
type PaymentReceivedPayload struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
}

// LeaseTerminatedPayload records why the lease was terminated.
type LeaseTerminatedPayload struct {
	Reason string `json:"reason"`
}
