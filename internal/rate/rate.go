package rate

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Rate is a frequency in events (frames, checks) per second
type Rate float64

func (r *Rate) UnmarshalText(text []byte) error {
	text = bytes.TrimSpace(bytes.ToLower(text))
	text = bytes.TrimSuffix(text, []byte("hz"))

	hz, err := strconv.ParseFloat(string(bytes.TrimSpace(text)), 64)
	if err != nil {
		return fmt.Errorf("rate must be a number with optional hz suffix")
	}

	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("rate must be a finite number")
	}

	if hz <= 0 {
		return fmt.Errorf("rate must be positive")
	}

	*r = Rate(hz)
	return nil
}

func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r Rate) String() string {
	return strconv.FormatFloat(float64(r), 'f', -1, 64) + "hz"
}

// Period is the duration between two consecutive events at this rate.
// Zero for non-positive and non-finite rates.
func (r Rate) Period() time.Duration {
	if !(r > 0) || math.IsInf(float64(r), 1) {
		return 0
	}

	return time.Duration(float64(time.Second) / float64(r))
}
