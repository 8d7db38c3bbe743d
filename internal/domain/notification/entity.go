package notification

// Message is fully rendered email content, ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
}
