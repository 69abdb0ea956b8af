package praise

import "github.com/mmynk/kudos/internal/models"

// Visible reports whether viewerID may see p: public praises are visible to
// everyone, private ones only to their sender and receiver.
func Visible(p models.PraiseMessage, viewerID string) bool {
	return p.IsPublic || viewerID == p.SenderID || viewerID == p.ReceiverID
}

// Redact withholds the sender of an anonymous praise. Nobody is exempt, the
// sender included, so an anonymous entry reads the same for every viewer.
// The receiver is never withheld.
func Redact(e models.PraiseEntry) models.PraiseEntry {
	if !e.IsAnonymous {
		return e
	}
	e.SenderID = ""
	e.Sender = nil
	return e
}
