// Package message renders one recipient's outreach email from a plaintext
// template and produces the transport-ready MIME envelope.
//
// The encoder is pure: it performs no I/O beyond the attachment bytes already
// in memory, and the same inputs always produce the same envelope.
//
// Templates carry three placeholders, substituted with plain string
// replacement (not a templating language): {salutation}, {company}, and
// {company_name} ({company} and {company_name} are aliases). ValidateTemplate
// rejects templates with unknown {...} tokens; the encoder itself assumes a
// pre-validated template.
//
// The text part of the envelope is always transfer-encoded as base64. Quoted
// printable and 7bit encodings wrap long lines at 76 characters, which splits
// multi-byte UTF-8 sequences and words in accented French text; base64 line
// wrapping happens below the byte layer, so the decoded body is byte-for-byte
// identical to the rendered plaintext.
//
// Usage:
//
//	builder := message.NewBuilder(detector)
//	env, body, err := builder.Build(message.Recipient{
//		Email:     "jane@example.com",
//		FirstName: "Jeanne",
//		LastName:  "Dupont",
//		Company:   "Acme",
//	}, template, "Candidature", message.Attachment{
//		Filename: "cv.pdf",
//		Content:  pdfBytes,
//	})
package message
