package folder

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/session"
)

// Session is the slice of the IMAP session the folder manager needs.
type Session interface {
	List() ([]session.ListEntry, error)
	Select(folder string, readOnly bool) (*imap.SelectData, error)
	Create(mailbox string) error
	Delete(mailbox string) error
	Rename(oldName, newName string) error
	Subscribe(mailbox string) error
	Unsubscribe(mailbox string) error
}

// Manager performs folder-level operations against one account. The
// hierarchy delimiter is discovered once and cached.
type Manager struct {
	sess   Session
	logger *slog.Logger

	delim      string
	delimKnown bool
}

// NewManager creates a folder manager over a connected session.
func NewManager(sess Session, logger *slog.Logger) *Manager {
	return &Manager{sess: sess, logger: logger}
}

// Delimiter returns the account's hierarchy delimiter, defaulting to
// "/" when the server reports none.
func (m *Manager) Delimiter() string {
	if m.delimKnown {
		return m.delim
	}
	m.delim = "/"
	m.delimKnown = true

	entries, err := m.sess.List()
	if err != nil {
		m.logger.Warn("delimiter discovery failed, assuming /", "error", err)
		return m.delim
	}
	for _, e := range entries {
		if e.Delim != "" {
			m.delim = e.Delim
			break
		}
	}
	return m.delim
}

// Folders returns the names of all folders visible to the account.
func (m *Manager) Folders() ([]string, error) {
	entries, err := m.sess.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Mailbox != "" {
			names = append(names, e.Mailbox)
		}
	}
	return names, nil
}

// EncodeMailbox makes a full folder path safe to send to the server.
// Pure-ASCII names pass through untouched; otherwise every segment
// after the root is sanitized.
func (m *Manager) EncodeMailbox(name string) string {
	if isASCII(name) {
		return name
	}
	delim := m.Delimiter()
	parts := strings.Split(name, delim)
	sanitized := []string{parts[0]}
	for _, seg := range parts[1:] {
		sanitized = append(sanitized, SanitizeSegment(seg, delim))
	}
	return strings.Join(sanitized, delim)
}

// Create creates and subscribes a folder. An already-existing folder is
// not an error: the subscribe still runs so the folder shows up in mail
// clients.
func (m *Manager) Create(name string) error {
	mailbox := m.EncodeMailbox(name)
	if err := m.sess.Create(mailbox); err != nil {
		m.logger.Debug("create folder failed, may already exist", "folder", name, "error", err)
	} else {
		m.logger.Info("created folder", "folder", name)
	}
	if err := m.sess.Subscribe(mailbox); err != nil {
		m.logger.Debug("subscribe failed", "folder", name, "error", err)
	}
	return nil
}

// ResolveSpamFolder returns the account's spam folder, creating
// INBOX<delim>SPAM when none exists. Any folder whose name contains
// "spam" or "junk" (case-insensitive) counts.
func (m *Manager) ResolveSpamFolder() (string, error) {
	folders, err := m.Folders()
	if err != nil {
		return "", fmt.Errorf("resolve spam folder: %w", err)
	}
	for _, name := range folders {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "spam") || strings.Contains(lower, "junk") {
			if err := m.sess.Subscribe(m.EncodeMailbox(name)); err != nil {
				m.logger.Debug("subscribe spam folder failed", "folder", name, "error", err)
			}
			return name, nil
		}
	}

	candidate := "INBOX" + m.Delimiter() + "SPAM"
	if err := m.Create(candidate); err != nil {
		alt := "SPAM"
		if altErr := m.Create(alt); altErr == nil {
			return alt, nil
		}
	}
	return candidate, nil
}

// FindTrashFolders returns all folders that look like trash.
func (m *Manager) FindTrashFolders() ([]string, error) {
	folders, err := m.Folders()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range folders {
		low := strings.ToLower(name)
		for _, tok := range []string{"trash", "deleted", "bin", "kosz"} {
			if strings.Contains(low, tok) {
				out = append(out, name)
				break
			}
		}
	}
	return out, nil
}

// ListCategoryFolders returns the organizer-owned category folders:
// under INBOX, last segment starting with the category prefix, and with
// a safe name. Unsafe legacy names are excluded; MigrateUnsafeCategoryFolders
// brings those back into the fold.
func (m *Manager) ListCategoryFolders() ([]string, error) {
	folders, err := m.Folders()
	if err != nil {
		return nil, err
	}
	delim := m.Delimiter()
	var out []string
	for _, name := range folders {
		if !strings.HasPrefix(strings.ToLower(name), "inbox") {
			continue
		}
		last := lastSegment(name, delim)
		if !strings.HasPrefix(strings.ToLower(last), strings.ToLower(CategoryPrefix)) {
			continue
		}
		if !IsSafeSegment(last) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// MigrateUnsafeCategoryFolders renames category folders whose last
// segment contains characters that trip up some servers. New names get
// a numeric suffix when the sanitized form collides with an existing
// folder.
func (m *Manager) MigrateUnsafeCategoryFolders() error {
	folders, err := m.Folders()
	if err != nil {
		return fmt.Errorf("migrate category folders: %w", err)
	}
	delim := m.Delimiter()

	existing := make(map[string]bool, len(folders))
	for _, name := range folders {
		existing[name] = true
	}

	for _, name := range folders {
		if !strings.HasPrefix(strings.ToLower(name), "inbox") {
			continue
		}
		last := lastSegment(name, delim)
		if !strings.HasPrefix(strings.ToLower(last), strings.ToLower(CategoryPrefix)) {
			continue
		}
		if IsSafeSegment(last) {
			continue
		}

		safeLast := SanitizeSegment(last, delim)
		if !strings.HasPrefix(strings.ToLower(safeLast), strings.ToLower(CategoryPrefix)) {
			safeLast = CategoryPrefix + safeLast
		}

		parent := parentPath(name, delim)
		candidate := joinPath(parent, safeLast, delim)
		for n := 1; existing[candidate]; n++ {
			candidate = joinPath(parent, fmt.Sprintf("%s_%d", safeLast, n), delim)
		}

		oldMB := m.EncodeMailbox(name)
		newMB := m.EncodeMailbox(candidate)
		if err := m.sess.Rename(oldMB, newMB); err != nil {
			m.logger.Warn("category folder rename failed", "from", name, "to", candidate, "error", err)
			continue
		}
		m.logger.Info("migrated category folder", "from", name, "to", candidate)
		if err := m.sess.Subscribe(newMB); err != nil {
			m.logger.Debug("subscribe failed", "folder", candidate, "error", err)
		}
		existing[candidate] = true
		delete(existing, name)
	}
	return nil
}

// CleanupEmptyCategoryFolders deletes category folders that hold no
// messages and have no children. Folders that fail to open are left
// alone.
func (m *Manager) CleanupEmptyCategoryFolders() error {
	folders, err := m.Folders()
	if err != nil {
		return fmt.Errorf("cleanup category folders: %w", err)
	}
	delim := m.Delimiter()
	sort.Strings(folders)

	var toDelete []string
	for _, name := range folders {
		last := lastSegment(name, delim)
		if !strings.HasPrefix(strings.ToLower(last), "category") {
			continue
		}
		if hasChildren(name, folders, delim) {
			continue
		}
		data, err := m.sess.Select(name, true)
		if err != nil {
			m.logger.Debug("skipping unselectable category folder", "folder", name, "error", err)
			continue
		}
		if data.NumMessages == 0 {
			toDelete = append(toDelete, name)
		}
	}

	for _, name := range toDelete {
		mailbox := m.EncodeMailbox(name)
		if err := m.sess.Unsubscribe(mailbox); err != nil {
			m.logger.Debug("unsubscribe failed", "folder", name, "error", err)
		}
		if err := m.sess.Delete(mailbox); err != nil {
			m.logger.Warn("empty category folder delete failed", "folder", name, "error", err)
			continue
		}
		m.logger.Info("deleted empty category folder", "folder", name)
	}
	return nil
}

// ResolveCategoryFolderName turns a category base name into a full,
// sanitized folder path under INBOX. Names already rooted at INBOX keep
// their path and get per-segment sanitization only.
func (m *Manager) ResolveCategoryFolderName(base string) string {
	delim := m.Delimiter()

	var fullPath string
	if strings.HasPrefix(strings.ToLower(base), "inbox") {
		fullPath = base
	} else {
		if base == "" {
			base = FallbackSegment
		}
		fullPath = "INBOX" + delim + SanitizeSegment(base, delim)
	}

	parts := strings.Split(fullPath, delim)
	sanitized := []string{parts[0]}
	for _, seg := range parts[1:] {
		sanitized = append(sanitized, SanitizeSegment(seg, delim))
	}
	return strings.Join(sanitized, delim)
}

func lastSegment(name, delim string) string {
	if delim == "" {
		return name
	}
	parts := strings.Split(name, delim)
	return parts[len(parts)-1]
}

func parentPath(name, delim string) string {
	if delim == "" {
		return ""
	}
	idx := strings.LastIndex(name, delim)
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

func joinPath(parent, seg, delim string) string {
	if parent == "" {
		return seg
	}
	return parent + delim + seg
}

func hasChildren(name string, folders []string, delim string) bool {
	prefix := name + delim
	for _, f := range folders {
		if f != name && strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
