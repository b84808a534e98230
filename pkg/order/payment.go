package order

import (
	"net/url"
	"strings"
)

// Outcome is what a payment-provider return redirect means for the order.
type Outcome int

const (
	Pending Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "pending"
	}
}

// BackURLFor builds "<base>/payment/<outcome>?order=<id>".
func BackURLFor(base, orderID string, o Outcome) string {
	return strings.TrimRight(base, "/") + "/payment/" + o.String() + "?order=" + url.QueryEscape(orderID)
}

// BackURLs returns the success, pending and failure pages for orderID.
func BackURLs(base, orderID string) ReturnURLs {
	return ReturnURLs{
		Success: BackURLFor(base, orderID, Success),
		Pending: BackURLFor(base, orderID, Pending),
		Failure: BackURLFor(base, orderID, Failure),
	}
}

// ClassifyPaymentReturn maps the provider's return query onto an outcome.
// "approved" in either status or collection_status wins, then "pending";
// "rejected" or "cancelled" fail; anything else, including no status at
// all, is pending.
func ClassifyPaymentReturn(params url.Values) Outcome {
	status := strings.ToLower(params.Get("status"))
	collection := strings.ToLower(params.Get("collection_status"))

	switch {
	case status == "approved" || collection == "approved":
		return Success
	case status == "pending" || collection == "pending":
		return Pending
	case status == "rejected" || status == "cancelled" ||
		collection == "rejected" || collection == "cancelled":
		return Failure
	}
	return Pending
}

// ReturnOrderID reads the order id from a return query: "order" on our own
// back URLs, "external_reference" on the provider's webhook-style redirect.
func ReturnOrderID(params url.Values) string {
	if id := params.Get("order"); id != "" {
		return id
	}
	return params.Get("external_reference")
}
