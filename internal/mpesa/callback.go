package mpesa

import (
	"encoding/json"
	"strconv"
)

// CallbackEnvelope is the webhook payload the gateway posts after an STK
// push resolves.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// StkCallback carries the push outcome. ResultCode 0 means success; the
// receipt number is nested in the metadata items.
type StkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

// CallbackMetadata is the list of named values attached to a successful
// callback.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is a single metadata entry.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata value, if present.
func (c *StkCallback) ReceiptNumber() string {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			var receipt string
			if err := json.Unmarshal(item.Value, &receipt); err == nil {
				return receipt
			}
		}
	}
	return ""
}

// Outcome maps the callback's result code to a normalized outcome.
func (c *StkCallback) Outcome() Outcome {
	return OutcomeFromResultCode(strconv.Itoa(c.ResultCode))
}
