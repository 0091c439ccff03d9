// Package mail builds provider bound mail transports.
//
// New turns a Config, a closed union tagged by Service, into a Mail handle
// for SMTP, Gmail, Mailgun, SparkPost, Resend or Mailtrap. Callers only see
// Mail and Message; each provider adapter delegates the wire protocol to its
// client library.
package mail
