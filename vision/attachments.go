package vision

import "encoding/base64"

// AttachmentKind classifies a context attachment riding along with an
// analysis request.
type AttachmentKind string

const (
	AttachmentLink  AttachmentKind = "link"
	AttachmentText  AttachmentKind = "text"
	AttachmentImage AttachmentKind = "image"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment is user-supplied reference material forwarded to the model
// alongside the captured frame: course notes, a syllabus PDF, a lecture
// recording link. Payload may be raw bytes or pre-encoded base64.
type Attachment struct {
	Kind     AttachmentKind
	MimeType string
	URI      string // for AttachmentLink
	Text     string // for AttachmentText
	Raw      []byte // raw payload, encoded on the way out
	Base64   string // pre-encoded payload, used as-is when Raw is empty
}

// toPart converts the attachment into a request part.
func (a Attachment) toPart() (genPart, bool) {
	switch a.Kind {
	case AttachmentText:
		if a.Text == "" {
			return genPart{}, false
		}
		return TextPart(a.Text), true
	case AttachmentLink:
		if a.URI == "" {
			return genPart{}, false
		}
		return FilePart(a.MimeType, a.URI), true
	case AttachmentImage, AttachmentPDF, AttachmentVideo:
		data := a.Base64
		if len(a.Raw) > 0 {
			data = encodeBase64(a.Raw)
		}
		if data == "" || a.MimeType == "" {
			return genPart{}, false
		}
		return InlinePart(a.MimeType, data), true
	default:
		return genPart{}, false
	}
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
