package voting

import "time"

// Clock supplies the current time to the service. Production uses
// SystemClock; tests inject a fixed or advancing fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }
