// Package services defines the business logic for draws and result queries.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Draw-related errors.
var (
	// ErrCampaignNotFound indicates that the requested campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignNotDrawable is returned when a campaign is not yet eligible
	// for a draw: it is neither closed nor a published campaign that has sold
	// out or passed its end date. The wrapped message names the current
	// status.
	ErrCampaignNotDrawable = errors.New("campaign not eligible for drawing")

	// ErrAlreadyDrawn is returned when the campaign already has recorded
	// results (or is in the terminal drawn status). Retrying is rejected
	// identically every time.
	ErrAlreadyDrawn = errors.New("campaign already drawn")

	// ErrDrawInProgress is returned when another draw attempt currently holds
	// the campaign's draw lock. Unlike ErrAlreadyDrawn, a caller may retry
	// once the in-flight draw has finished.
	ErrDrawInProgress = errors.New("draw already in progress")

	// ErrWinnerNotFound indicates that the user has no winning entry in the
	// requested campaign.
	ErrWinnerNotFound = errors.New("no winning entry for user in campaign")
)

// IsConflict reports whether err belongs to the conflict class of the draw
// error taxonomy: the draw has already happened, or one is running right now.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyDrawn) || errors.Is(err, ErrDrawInProgress)
}
