// Package connectors pulls delivery-note mail into the local inbox table.
package connectors

import "sitestock/internal"

// MailConnector returns unseen messages of a mailbox, newest last, at most max.
type MailConnector interface {
	FetchUnseen(mailbox string, max int) ([]internal.FetchedMailMessage, error)
}
