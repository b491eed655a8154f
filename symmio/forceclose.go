package symmio

import (
	"errors"
	"fmt"
	"time"

	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/types"
)

// ErrInvalidForceCloseRange is returned when the cooldowns leave no whole
// minute to attest a price range over.
var ErrInvalidForceCloseRange = errors.New("invalid force close range: end time must be after start time")

// ForceCloseRange computes the [t0, t1] window a priceRange attestation
// must cover to force close a quote. The window opens firstCooldown after
// the quote's last status change and closes at the earlier of its deadline
// and now minus secondCooldown. The start is rounded up and the end down to
// whole minutes.
func ForceCloseRange(
	statusModifyTimestamp int64,
	deadline int64,
	firstCooldown int64,
	secondCooldown int64,
	now int64,
) (int64, int64, error) {
	start := statusModifyTimestamp + firstCooldown
	end := min(deadline, now-secondCooldown)
	if end <= start {
		return 0, 0, fmt.Errorf("%w (start %d, end %d)", ErrInvalidForceCloseRange, start, end)
	}

	start = utils.MinuteCeil(start)
	end = utils.MinuteFloor(end)
	if end <= start {
		return 0, 0, fmt.Errorf("%w (start %d, end %d after rounding)", ErrInvalidForceCloseRange, start, end)
	}
	return start, end, nil
}

// QuoteForceCloseRange applies ForceCloseRange to a decoded quote.
func QuoteForceCloseRange(quote types.Quote, cooldowns types.ForceCloseCooldowns, now time.Time) (int64, int64, error) {
	if quote.StatusModifyTimestamp == nil || quote.Deadline == nil ||
		cooldowns.First == nil || cooldowns.Second == nil {
		return 0, 0, fmt.Errorf("quote or cooldowns incomplete")
	}
	return ForceCloseRange(
		quote.StatusModifyTimestamp.Int64(),
		quote.Deadline.Int64(),
		cooldowns.First.Int64(),
		cooldowns.Second.Int64(),
		now.Unix(),
	)
}
