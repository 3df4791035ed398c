package orders

import (
	"fmt"
	"math/rand"
	"time"
)

// OrderNumberPrefix tags every order number issued by this service.
const OrderNumberPrefix = "TL"

// NewOrderNumber derives a human-quotable order number, e.g. TL73024951.
// The leading digits come from the clock so numbers sort roughly by time;
// the trailing digits are random so two orders placed in the same second
// still draw distinct candidates. Uniqueness is enforced by the database,
// with the caller retrying on a collision.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s%04d%04d", OrderNumberPrefix, now.Unix()%10000, rand.Int63n(10000))
}
