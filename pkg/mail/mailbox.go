package mail

import "strings"

// Mailbox describes one folder in the account hierarchy. Path is the
// unique identifier within an account; Parent and ParentPath are
// derived from Path and Delimiter so that joining Parent with
// Delimiter always yields ParentPath.
type Mailbox struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Delimiter  string   `json:"delimiter"`
	Parent     []string `json:"parent"`
	ParentPath string   `json:"parentPath"`
	Flags      []string `json:"flags"`
	SpecialUse string   `json:"specialUse,omitempty"`
}

// NewMailbox builds a Mailbox from its path, deriving name and parent
// fields from the delimiter.
func NewMailbox(path, delimiter string, flags []string, specialUse string) Mailbox {
	segments := []string{path}
	if delimiter != "" {
		segments = strings.Split(path, delimiter)
	}
	parent := segments[:len(segments)-1]

	return Mailbox{
		Name:       segments[len(segments)-1],
		Path:       path,
		Delimiter:  delimiter,
		Parent:     parent,
		ParentPath: strings.Join(parent, delimiter),
		Flags:      flags,
		SpecialUse: specialUse,
	}
}

// MailboxStatus holds the message counters of one mailbox.
type MailboxStatus struct {
	Messages uint32 `json:"messages"`
	Recent   uint32 `json:"recent"`
	Unseen   uint32 `json:"unseen"`
}

// MailboxNode is a mailbox with its direct children, for the tree form
// of a folder listing.
type MailboxNode struct {
	Mailbox
	Children []*MailboxNode `json:"children"`
}

// BuildTree groups a flat mailbox listing by parent path. Mailboxes
// whose parent is not part of the listing become roots.
func BuildTree(boxes []Mailbox) []*MailboxNode {
	nodes := make(map[string]*MailboxNode, len(boxes))
	for _, mb := range boxes {
		nodes[mb.Path] = &MailboxNode{Mailbox: mb}
	}

	var roots []*MailboxNode
	for _, mb := range boxes {
		node := nodes[mb.Path]
		if parent, ok := nodes[mb.ParentPath]; ok && mb.ParentPath != "" {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}
