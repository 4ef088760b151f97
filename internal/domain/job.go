package domain

// SMTPConfig is the transport configuration carried inside a job payload.
// PasswordEncrypted stays encrypted in transit and at rest; only the worker
// decrypts it, immediately before submission.
type SMTPConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Secure            bool   `json:"secure"`
	Username          string `json:"username"`
	PasswordEncrypted string `json:"passwordEncrypted"`
}

// JobSender is the resolved sender block of a job payload.
type JobSender struct {
	Email string     `json:"email"`
	Name  string     `json:"name"`
	SMTP  SMTPConfig `json:"smtp"`
}

// Job is an immutable work item: one outbound email for one recipient.
// Produced by the orchestrator at start time, consumed logically once by a
// worker (though the queue may deliver it more than once).
type Job struct {
	JobID       string    `json:"jobId"`
	CampaignID  string    `json:"campaignId"`
	RecipientID string    `json:"recipientId"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html"`
	TraceID     string    `json:"traceId"`
	Sender      JobSender `json:"sender"`
}
