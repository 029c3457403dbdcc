package services

import "github.com/Joello61/candi-tracker-api/internal/models"

// Allowed application status changes. Rejected and withdrawn applications may be reopened.
var ApplicationTransitions = map[models.ApplicationStatus]map[models.ApplicationStatus]bool{
	models.ApplicationApplied: {
		models.ApplicationUnderReview: true, models.ApplicationInterview: true, models.ApplicationOffer: true,
		models.ApplicationRejected: true, models.ApplicationWithdrawn: true,
	},
	models.ApplicationUnderReview: {
		models.ApplicationInterview: true, models.ApplicationOffer: true,
		models.ApplicationRejected: true, models.ApplicationWithdrawn: true,
	},
	models.ApplicationInterview: {
		models.ApplicationOffer: true, models.ApplicationRejected: true, models.ApplicationWithdrawn: true,
	},
	models.ApplicationOffer: {
		models.ApplicationAccepted: true, models.ApplicationRejected: true, models.ApplicationWithdrawn: true,
	},
	models.ApplicationAccepted:  {models.ApplicationWithdrawn: true},
	models.ApplicationRejected:  {models.ApplicationApplied: true},
	models.ApplicationWithdrawn: {models.ApplicationApplied: true},
}

func canTransition(current, to models.ApplicationStatus) bool {
	if current == "" {
		// rows written before statuses were enforced
		return true
	}
	nexts, ok := ApplicationTransitions[current]
	if !ok {
		return false
	}
	return nexts[to]
}
