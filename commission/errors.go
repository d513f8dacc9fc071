/*
errors.go - Centralized error types for the commission engines

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Engine packages wrap these with subject context.

ERROR CATEGORIES:
  1. Input errors - bad CLI arguments, unresolvable subjects (early exit)
  2. Duplicate-key collisions - the expected outcome of a re-run, absorbed
  3. Financial-consistency errors - roll back, skip the subject, retry on
     the next scheduled invocation

USAGE:
  if errors.Is(err, commission.ErrDuplicateAward) {
      // already awarded on a previous run - not a failure
  }
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidClosing is returned for a closing number other than 1 or 2.
	ErrInvalidClosing = errors.New("invalid closing: must be 1 or 2")

	// ErrInvalidMode is returned for an unknown period mode.
	ErrInvalidMode = errors.New("invalid period mode: must be monthly or weekly")

	// ErrDuplicatePayout is returned when a binary payout row already exists
	// for the (sponsor, plan, closing) key. Expected on re-runs.
	ErrDuplicatePayout = errors.New("duplicate binary payout")

	// ErrDuplicateAward is returned when a star-rank award row already
	// exists for the (sponsor, rank) key. Expected on re-runs.
	ErrDuplicateAward = errors.New("duplicate star award")

	// ErrDuplicateQualification is returned when a salary qualification row
	// already exists for the (sponsor, period) key. Expected on re-runs.
	ErrDuplicateQualification = errors.New("duplicate salary qualification")

	// ErrInsufficientBalance is returned when a wallet debit would drive the
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrChildSlotTaken is returned when a placement write would overwrite
	// an already-set child pointer. Child pointers are immutable.
	ErrChildSlotTaken = errors.New("placement slot already taken")

	// ErrNoFreeSlot is returned when spillover search exhausts the branch.
	ErrNoFreeSlot = errors.New("no free placement slot in branch")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// IsDuplicate reports whether err is one of the duplicate-key collisions
// that a re-run is expected to produce.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicatePayout) ||
		errors.Is(err, ErrDuplicateAward) ||
		errors.Is(err, ErrDuplicateQualification)
}

// =============================================================================
// STRUCTURED ERRORS - Carry subject context
// =============================================================================

// SubjectError wraps a per-subject computation failure. Engines log it with
// the subject identifier and continue with the next subject.
type SubjectError struct {
	SponsorID string
	Stage     string // e.g. "aggregate", "payout", "installment"
	Err       error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("sponsor %s: %s: %v", e.SponsorID, e.Stage, e.Err)
}

func (e *SubjectError) Unwrap() error { return e.Err }
