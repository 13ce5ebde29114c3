// Package notify delivers confirmation links to users.
//
// [Mailer] renders one HTML template per confirmation type and sends it over
// SMTP. [LogNotifier] only records the delivery and is meant for local runs
// where no mail relay is configured.
package notify
