package driven

import "context"

// ResultPublisher defines the driven port for uploading result files to
// durable storage. A failed publish degrades the report (the link is omitted)
// rather than aborting the run, so implementations signal failure through the
// error return and must not panic.
type ResultPublisher interface {
	// Publish uploads the local file and returns its public URL.
	Publish(ctx context.Context, localPath string) (url string, err error)
}
