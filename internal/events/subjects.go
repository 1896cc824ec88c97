package events

const (
	StreamName   = "PIPEDESK_EVENTS"
	StreamMaxAge = "720h" // 30 days

	// SubjectLeadActivity is the inbound subject other systems publish lead
	// activity on.
	SubjectLeadActivity = "pipedesk.inbound.lead.*.activity"

	SubjectPriorityConfigUpdated = "pipedesk.settings.priority.updated"
	SubjectSLASweepCompleted     = "pipedesk.sla.sweep.completed"
)

var StreamSubjects = []string{"pipedesk.deal.>", "pipedesk.lead.>", "pipedesk.settings.>", "pipedesk.sla.>"}

func SubjectDealCreated(dealID string) string         { return "pipedesk.deal." + dealID + ".created" }
func SubjectDealStageMoved(dealID string) string      { return "pipedesk.deal." + dealID + ".stage.moved" }
func SubjectTransitionDenied(dealID string) string    { return "pipedesk.deal." + dealID + ".transition.denied" }
func SubjectDealSLAChanged(dealID string) string      { return "pipedesk.deal." + dealID + ".sla.changed" }
func SubjectLeadCreated(leadID string) string         { return "pipedesk.lead." + leadID + ".created" }
func SubjectLeadBucketChanged(leadID string) string   { return "pipedesk.lead." + leadID + ".bucket.changed" }
func SubjectInboundLeadActivity(leadID string) string { return "pipedesk.inbound.lead." + leadID + ".activity" }
