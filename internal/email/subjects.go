package email

const (
	subjectStageAdvancedFmt = "%s moved to %s"
	subjectFollowUpReminder = "Follow-up reminder"
	subjectLeadAssignedFmt  = "New lead assigned: %s"
)
