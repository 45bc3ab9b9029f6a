package models

// Inbound payment-provider and registration events. Transport authenticity
// (webhook signatures, Kafka ACLs) is verified upstream; by the time one of
// these reaches a handler it is trusted. Amounts arrive in minor units.

// PaymentSucceededEvent is emitted for every captured charge, with an
// optional referral code collected at checkout when registration
// attribution was never separately recorded.
type PaymentSucceededEvent struct {
	PaymentID        string `json:"paymentId" validate:"required"`
	InvoiceID        string `json:"invoiceId,omitempty"`
	CustomerID       string `json:"customerId" validate:"required"`
	UserID           string `json:"userId,omitempty"`
	UserEmail        string `json:"userEmail,omitempty"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"required,len=3"`
	ReferralCodeHint string `json:"referralCodeHint,omitempty"`
}

// PaymentRefundedEvent covers both partial and full refunds.
type PaymentRefundedEvent struct {
	PaymentID      string `json:"paymentId" validate:"required"`
	RefundedAmount int64  `json:"refundedAmount" validate:"required,gt=0"`
	IsFullRefund   bool   `json:"isFullRefund"`
}

// PaymentChargedBackEvent signals a dispute lost to the cardholder.
type PaymentChargedBackEvent struct {
	PaymentID string `json:"paymentId" validate:"required"`
}

// UserRegisteredEvent links a new account to the referral code it signed up
// with.
type UserRegisteredEvent struct {
	ReferralCode   string `json:"referralCode" validate:"required"`
	ReferredEmail  string `json:"referredEmail" validate:"required,email"`
	ReferredUserID string `json:"referredUserId" validate:"required"`
	SourceIP       string `json:"sourceIp,omitempty"`
	UTMSource      string `json:"utmSource,omitempty"`
	UTMMedium      string `json:"utmMedium,omitempty"`
	UTMCampaign    string `json:"utmCampaign,omitempty"`
}
