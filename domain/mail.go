package domain

// MailMessage is an outgoing email.
type MailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}
