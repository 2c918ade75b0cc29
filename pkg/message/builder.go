package message

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/cenderhq/cender/pkg/gender"
)

// Salutation strings for French business correspondence.
const (
	salutationMale    = "Monsieur"
	salutationFemale  = "Madame"
	salutationNeutral = "Madame, Monsieur"
)

// base64 line width. Wrapping happens below the byte layer, so it never
// splits UTF-8 sequences or words in the decoded body.
const base64LineLength = 76

// Recipient carries the display data needed to render one email.
type Recipient struct {
	Email     string
	FirstName string
	LastName  string
	Company   string
}

// Attachment is a binary attachment with its original filename.
type Attachment struct {
	Filename string
	Content  []byte
}

// Envelope is the fully encoded, transport-ready message.
// Raw is the base64url-encoded MIME message consumed by the Gmail send API;
// the structured fields let alternative transports build their own request.
type Envelope struct {
	To         string
	Subject    string
	Body       string
	Attachment Attachment
	Raw        string
}

// Builder renders outreach emails. The gender detector is injected so the
// salutation heuristic stays swappable and testable.
type Builder struct {
	detector gender.Detector
}

// NewBuilder creates a Builder with the given salutation detector.
func NewBuilder(detector gender.Detector) *Builder {
	return &Builder{detector: detector}
}

// Salutation derives the French salutation for a recipient. The last name,
// when present, is appended to the gendered form.
func (b *Builder) Salutation(firstName, lastName string) string {
	var s string
	switch b.detector.Guess(firstName) {
	case gender.Male:
		s = salutationMale
	case gender.Female:
		s = salutationFemale
	default:
		s = salutationNeutral
	}
	if lastName = strings.TrimSpace(lastName); lastName != "" {
		s = s + " " + lastName
	}
	return s
}

// Build renders the template for one recipient and assembles the MIME
// envelope. It returns the envelope and the plaintext body used for previews
// and auditing; decoding the envelope's text part yields exactly that body.
func (b *Builder) Build(r Recipient, template, subject string, att Attachment) (*Envelope, string, error) {
	if r.Email == "" {
		return nil, "", ErrNoRecipient
	}

	salutation := b.Salutation(r.FirstName, r.LastName)
	body := Render(template, salutation, r.Company)

	raw, err := encodeMIME(r.Email, subject, body, att)
	if err != nil {
		return nil, "", err
	}

	return &Envelope{
		To:         r.Email,
		Subject:    subject,
		Body:       body,
		Attachment: att,
		Raw:        raw,
	}, body, nil
}

// encodeMIME assembles a multipart/mixed message and returns it base64url
// encoded for the Gmail send API. The text part is forced to base64 transfer
// encoding: quoted-printable and 7bit writers fold long lines, which corrupts
// accented text.
func encodeMIME(to, subject, body string, att Attachment) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(`Content-Type: multipart/mixed; boundary="` + mw.Boundary() + "\"\r\n\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="UTF-8"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return "", errors.Join(ErrEncodeFailed, err)
	}
	if _, err := textPart.Write(wrapBase64([]byte(body))); err != nil {
		return "", errors.Join(ErrEncodeFailed, err)
	}

	if att.Filename != "" {
		attPart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", att.Filename)},
		})
		if err != nil {
			return "", errors.Join(ErrEncodeFailed, err)
		}
		if _, err := attPart.Write(wrapBase64(att.Content)); err != nil {
			return "", errors.Join(ErrEncodeFailed, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", errors.Join(ErrEncodeFailed, err)
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// wrapBase64 encodes data and folds the base64 text at the RFC 2045 line
// width. Folding base64 text is safe: line breaks are discarded on decode.
func wrapBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)

	var sb strings.Builder
	sb.Grow(len(enc) + 2*(len(enc)/base64LineLength+1))
	for len(enc) > base64LineLength {
		sb.WriteString(enc[:base64LineLength])
		sb.WriteString("\r\n")
		enc = enc[base64LineLength:]
	}
	sb.WriteString(enc)
	return []byte(sb.String())
}
