package barion

import "ms-storefront/internal/models"

// normalizeStatus maps the gateway's status strings onto the closed
// vocabulary the rest of the system uses. Anything unrecognized is
// Unknown, never Failed.
func normalizeStatus(raw string) models.PaymentStatus {
	switch raw {
	case "Succeeded":
		return models.PaymentSucceeded
	case "Canceled":
		return models.PaymentCanceled
	case "Failed", "Expired":
		return models.PaymentFailed
	case "Prepared", "Started", "InProgress", "Waiting", "Reserved", "Authorized":
		return models.PaymentPending
	default:
		return models.PaymentUnknown
	}
}
