package email

const (
	subjectNewLeadAvailableFmt = "New %s lead available: %s"
	subjectRuleAssignedFmt     = "Lead assigned to you: %s"
	subjectAdminFallbackFmt    = "Urgent: unclaimed lead assigned to you: %s"
	subjectClaimSLABreachFmt   = "Action needed: %s was not claimed"
	subjectManualAssignedFmt   = "Lead assigned to you: %s"
)
