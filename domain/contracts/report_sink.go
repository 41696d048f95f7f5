package contracts

import "context"

// Attachment content types understood by the report sink.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// Attachment is a diagnostic artifact produced while a run executes.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReportSink receives diagnostic artifacts (screenshots, result dumps, summaries).
type ReportSink interface {
	Attach(ctx context.Context, a Attachment) error
}

// ReportSinkFunc adapts a function to ReportSink.
type ReportSinkFunc func(ctx context.Context, a Attachment) error

// Attach implements ReportSink.
func (f ReportSinkFunc) Attach(ctx context.Context, a Attachment) error {
	return f(ctx, a)
}

// DiscardSink drops every attachment.
var DiscardSink ReportSink = ReportSinkFunc(func(context.Context, Attachment) error { return nil })
