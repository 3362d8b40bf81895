// ABOUTME: User-facing copy shared by the web pages, the terminal client and the agent tools.
// ABOUTME: Maps a failed create to the message a composer shows.
package posts

import "github.com/2389-research/chirp/internal/apierr"

const (
	MsgPostFailed = "Failed to post! Please try again later."
	MsgFeedFailed = "Something went wrong"

	// The single-post page is a placeholder until post details exist.
	PostPageTitle = "Post"
	PostPageBody  = "post"
)

// ContentError returns the first content validation message carried by err.
func ContentError(err error) (string, bool) {
	e, ok := apierr.As(err)
	if !ok {
		return "", false
	}
	return e.FieldError(ContentField)
}

// ComposeErrorMessage picks the content validation message, or the generic failure.
func ComposeErrorMessage(err error) string {
	if msg, ok := ContentError(err); ok {
		return msg
	}
	return MsgPostFailed
}
