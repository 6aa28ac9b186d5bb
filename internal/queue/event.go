package queue

// MailRequestedEvent is published whenever the service needs an email
// delivered (account activation links, password recovery links). Actual
// delivery is owned by a downstream consumer; the auth service only emits
// the request so a mail outage never blocks an HTTP response.
type MailRequestedEvent struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Kind        string `json:"kind"` // activation | recovery
	UserID      string `json:"user_id"`
	RequestedAt string `json:"requested_at"`
}
