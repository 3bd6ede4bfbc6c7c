// Package inference abstracts the external language-model endpoint as an
// opaque function from a conversation to free-form text.
package inference

import (
	"context"

	"github.com/effective-security/toolchat/chatmodel"
)

// Client converts a conversation into the model's raw text reply. The caller
// owns retry and termination policy; implementations return every failure as
// an error.
type Client interface {
	// Generate returns the model's reply for the full message history.
	Generate(ctx context.Context, messages []chatmodel.Message) (string, error)
	// ModelName identifies the model for logs and metrics.
	ModelName() string
}
