package document

import (
	"wishdoc/internal/docstore"
	"wishdoc/internal/services/user"
)

// The three predicates below are the whole access-control model. Each
// takes a candidate document and the acting user's verified identity
// and decides one capability. Store-internal records and records with
// no owner always fail.
//
// A quirk preserved on purpose: once a draft is shared, only the listed
// recipients can read it. The owner keeps no read access unless they
// are also a recipient.

func listed(tos []string, u user.Resolved) bool {
	for _, to := range tos {
		if to == u.ID || (u.ScreenName != "" && to == u.ScreenName) {
			return true
		}
	}
	return false
}

func wellFormed(doc *Document) bool {
	return doc != nil &&
		!docstore.IsInternal(doc.ID) &&
		doc.RecordType == docstore.TypeDocument &&
		doc.Owner != nil && doc.Owner.ID != ""
}

// Readable reports whether u may view doc: the owner while it is a
// draft, a listed recipient once it is shared.
func Readable(doc *Document, u user.Resolved) bool {
	if !wellFormed(doc) {
		return false
	}
	if doc.Status == StatusShared {
		return listed(doc.Tos, u)
	}
	return doc.Status == StatusDraft && doc.Owner.ID == u.ID
}

// Editable reports whether u may modify doc: only the owner, only
// while it is a draft. Sharing locks the document for good.
func Editable(doc *Document, u user.Resolved) bool {
	return wellFormed(doc) && doc.Status == StatusDraft && doc.Owner.ID == u.ID
}

// StatusChangeable reports whether u may flip doc from draft to
// shared: only a listed recipient, which includes an owner who listed
// themselves.
func StatusChangeable(doc *Document, u user.Resolved) bool {
	return wellFormed(doc) && doc.Status == StatusDraft && listed(doc.Tos, u)
}
