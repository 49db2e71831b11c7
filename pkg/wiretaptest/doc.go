// Package wiretaptest provides helpers for asserting on recorded HTTP
// traffic in Go tests.
//
// # Basic Usage
//
// Create a harness, send traffic through its client, then assert on what
// was recorded:
//
//	func TestCheckout(t *testing.T) {
//	    h := wiretaptest.New(t)
//
//	    svc := checkout.NewService(h.Client(), paymentsURL)
//	    svc.Pay(ctx, order)
//
//	    h.AssertCalled(t, "POST", "/v1/charges")
//	    req := h.Last(t)
//	    req.AssertHeader(t, "Idempotency-Key", order.ID)
//	    req.AssertJSONField(t, "amount", float64(1250))
//	    req.AssertStatus(t, 201)
//	}
//
// Records are kept in memory and discarded when the test ends. Every
// lookup waits for captures in flight to reach the log first.
package wiretaptest
