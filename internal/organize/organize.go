// Package organize wires the whole mailbox-cleaning pipeline: folder
// migration, spam resolution, corruption-aware fetching, filtering,
// clustering, and moving messages into category folders.
package organize

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/mailgroom/mailgroom/internal/classify"
	"github.com/mailgroom/mailgroom/internal/cluster"
	"github.com/mailgroom/mailgroom/internal/config"
	"github.com/mailgroom/mailgroom/internal/folder"
	"github.com/mailgroom/mailgroom/internal/mailbox"
	"github.com/mailgroom/mailgroom/internal/session"
	"github.com/mailgroom/mailgroom/internal/textindex"
)

// Session is the slice of the IMAP session the pipeline needs. A
// connected *session.Resilient satisfies it.
type Session interface {
	Select(folderName string, readOnly bool) (*imap.SelectData, error)
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)
	SearchAll() ([]uint32, error)
	ProbeFlags(uid imap.UID) (int, error)
	FetchFullUID(uid imap.UID) (session.RawMessage, error)
	FetchFullSeq(seq uint32) (session.RawMessage, error)
	FetchFullUIDs(uids []imap.UID) ([]session.RawMessage, error)
	FetchHeaderFields(uids []imap.UID, fields []string) ([]session.RawMessage, error)
	MoveUID(uids []imap.UID, dest string) error
	Expunge() (int, error)
}

// Options selects what one pipeline run processes.
type Options struct {
	// Folder is the mailbox to organize. Default INBOX.
	Folder string

	// SinceDate, when set, limits the run to messages on or after it.
	// SinceDays does the same relative to now; SinceDate wins when
	// both are set. Zero values mean the whole mailbox.
	SinceDate time.Time
	SinceDays int

	// Limit overrides the configured message cap when positive.
	Limit int
}

// Stats summarizes one pipeline run.
type Stats struct {
	Folder          string
	CorruptionLevel mailbox.CorruptionLevel
	Strategy        mailbox.FetchStrategy

	Candidates          int
	SpamMoved           int
	CrossSpamMoved      int
	SkippedShort        int
	SkippedConversation int
	Accepted            int

	Categories        int
	CategoriesMatched int
	CategoriesCreated int
	Moved             int

	Started  time.Time
	Duration time.Duration
}

// Pipeline runs the organizer against one account.
type Pipeline struct {
	sess    Session
	folders *folder.Manager
	cfg     config.OrganizeConfig
	logger  *slog.Logger

	now func() time.Time
}

// New creates a Pipeline. The folder manager must wrap the same
// session.
func New(sess Session, folders *folder.Manager, cfg config.OrganizeConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sess:    sess,
		folders: folders,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Pipeline) newVectorizer() *textindex.Vectorizer {
	return textindex.NewVectorizer(p.cfg.MaxFeatures, p.cfg.StopwordsMode)
}

// Run executes the full pipeline and returns its statistics. Individual
// message failures are skipped; only session-level failures abort.
func (p *Pipeline) Run(opts Options) (*Stats, error) {
	target := opts.Folder
	if target == "" {
		target = "INBOX"
	}
	limit := p.cfg.MessageLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	stats := &Stats{Folder: target, Started: p.now()}
	defer func() { stats.Duration = p.now().Sub(stats.Started) }()

	if err := p.folders.MigrateUnsafeCategoryFolders(); err != nil {
		p.logger.Warn("category folder migration failed", "error", err)
	}

	spamFolder, err := p.folders.ResolveSpamFolder()
	if err != nil {
		return stats, fmt.Errorf("resolve spam folder: %w", err)
	}
	p.logger.Debug("spam folder resolved", "folder", spamFolder)

	if names, listErr := p.folders.Folders(); listErr == nil {
		p.logger.Debug("mailbox structure", "count", len(names), "folders", names)
	}

	if _, err := p.sess.Select(target, false); err != nil {
		return stats, fmt.Errorf("select %s: %w", target, err)
	}
	if _, err := p.sess.Expunge(); err != nil {
		p.logger.Debug("initial expunge failed", "error", err)
	}

	criteria := buildSearchCriteria(opts.SinceDate, opts.SinceDays, p.now())
	uids, err := p.sess.UIDSearch(criteria)
	if err != nil {
		return stats, fmt.Errorf("search %s: %w", target, err)
	}
	uids = tailUIDs(uids, limit)
	stats.Candidates = len(uids)
	if len(uids) == 0 {
		p.logger.Info("no messages to organize", "folder", target)
		return stats, nil
	}

	diag := mailbox.Diagnose(p.sess, uids, p.logger)
	stats.CorruptionLevel = diag.Level
	strategy := mailbox.StrategyFor(diag.Level)
	stats.Strategy = strategy

	refs, err := p.buildRefs(uids, strategy, limit)
	if err != nil {
		return stats, fmt.Errorf("build fetch refs: %w", err)
	}

	convIndex := p.buildConversationIndex()

	// The conversation index selects other folders; come back to the
	// target before fetching.
	if _, err := p.sess.Select(target, false); err != nil {
		return stats, fmt.Errorf("reselect %s: %w", target, err)
	}

	fetcher := mailbox.NewFetcher(p.sess, p.logger)
	fetched := fetcher.Fetch(refs, strategy)

	var accepted []*mailbox.Message
	var spamRefs []imap.UID
	for _, msg := range fetched {
		switch {
		case classify.IsSpam(msg):
			if msg.Ref.UID != 0 {
				spamRefs = append(spamRefs, msg.Ref.UID)
			}
		case !classify.HasSufficientText(msg, p.cfg.ContentMinChars, p.cfg.ContentMinTokens):
			stats.SkippedShort++
		case convIndex.IsActive(msg):
			stats.SkippedConversation++
		default:
			accepted = append(accepted, msg)
		}
		if len(accepted) >= limit {
			break
		}
	}

	if len(spamRefs) > 0 {
		if err := p.sess.MoveUID(spamRefs, spamFolder); err != nil {
			p.logger.Warn("spam move failed", "count", len(spamRefs), "error", err)
		} else {
			stats.SpamMoved = len(spamRefs)
		}
	}

	accepted, crossMoved := p.crossSpamSweep(target, spamFolder, accepted)
	stats.CrossSpamMoved = crossMoved
	stats.Accepted = len(accepted)

	if len(accepted) == 0 {
		p.logger.Info("nothing left to categorize", "folder", target)
		p.finish()
		return stats, nil
	}

	engine := cluster.NewEngine(p.newVectorizer(), p.cfg.SimilarityThreshold, p.cfg.MinClusterSize, p.cfg.MinClusterFraction)
	categories := engine.Cluster(accepted)
	stats.Categories = len(categories)
	p.logger.Info("clustering done", "messages", len(accepted), "categories", len(categories))

	if len(categories) > 0 {
		matcher := cluster.NewMatcher(p, p.newVectorizer,
			p.cfg.CategoryMatchThreshold, p.cfg.CategorySenderWeight, p.cfg.CategorySampleLimit, p.logger)
		candidates, err := p.folders.ListCategoryFolders()
		if err != nil {
			p.logger.Warn("listing category folders failed", "error", err)
		}

		for _, cat := range categories {
			group := make([]*mailbox.Message, len(cat.Members))
			for i, idx := range cat.Members {
				group[i] = accepted[idx]
			}

			dest := matcher.BestFolder(group, candidates)
			if dest != "" {
				stats.CategoriesMatched++
				p.logger.Info("cluster matched existing folder", "name", cat.Name, "folder", dest, "messages", len(group))
			} else {
				dest = p.folders.ResolveCategoryFolderName(cat.Name)
				if err := p.folders.Create(dest); err != nil {
					p.logger.Warn("category folder create failed", "folder", dest, "error", err)
					continue
				}
				candidates = append(candidates, dest)
				stats.CategoriesCreated++
				p.logger.Info("created category folder", "name", cat.Name, "folder", dest, "messages", len(group))
			}

			// Sampling may have selected other folders.
			if _, err := p.sess.Select(target, false); err != nil {
				return stats, fmt.Errorf("reselect %s: %w", target, err)
			}
			moveUIDs := make([]imap.UID, 0, len(group))
			for _, msg := range group {
				if msg.Ref.UID != 0 {
					moveUIDs = append(moveUIDs, msg.Ref.UID)
				} else {
					p.logger.Debug("message without UID not moved", "ref", msg.Ref.String())
				}
			}
			if len(moveUIDs) == 0 {
				continue
			}
			if err := p.sess.MoveUID(moveUIDs, dest); err != nil {
				p.logger.Warn("category move failed", "folder", dest, "error", err)
				continue
			}
			stats.Moved += len(moveUIDs)
		}
	}

	p.finish()
	p.logger.Info("organize finished",
		"folder", target,
		"accepted", stats.Accepted,
		"spam", stats.SpamMoved+stats.CrossSpamMoved,
		"categories", stats.Categories,
		"moved", stats.Moved,
	)
	return stats, nil
}

func (p *Pipeline) finish() {
	if !p.cfg.CleanupEmptyCategories {
		return
	}
	if err := p.folders.CleanupEmptyCategoryFolders(); err != nil {
		p.logger.Warn("category folder cleanup failed", "error", err)
	}
}

// buildConversationIndex collects recent Message-IDs from Sent and
// Drafts. Failures degrade to an empty index.
func (p *Pipeline) buildConversationIndex() *classify.ConversationIndex {
	names, err := p.folders.Folders()
	if err != nil {
		p.logger.Warn("folder listing for conversation index failed", "error", err)
		return classify.NewConversationIndex(nil)
	}
	return classify.BuildConversationIndex(p.sess, names, p.cfg.ConversationDays, p.cfg.ConversationLimit, p.logger)
}

// crossSpamSweep moves accepted messages resembling known spam or trash
// into the spam folder and returns the survivors.
func (p *Pipeline) crossSpamSweep(target, spamFolder string, accepted []*mailbox.Message) ([]*mailbox.Message, int) {
	if len(accepted) == 0 || p.cfg.CrossSpamSampleLimit <= 0 {
		return accepted, 0
	}

	var refTexts []string
	if spamFolder != "" {
		refTexts = append(refTexts, p.sampleFolderTexts(spamFolder, p.cfg.CrossSpamSampleLimit)...)
	}
	if trash, err := p.folders.FindTrashFolders(); err == nil && len(trash) > 0 {
		perFolder := p.cfg.CrossSpamSampleLimit / len(trash)
		if perFolder < 1 {
			perFolder = 1
		}
		for _, tf := range trash {
			refTexts = append(refTexts, p.sampleFolderTexts(tf, perFolder)...)
		}
	}

	// Sampling changed the selected folder.
	if _, err := p.sess.Select(target, false); err != nil {
		p.logger.Warn("reselect after cross-spam sampling failed", "error", err)
		return accepted, 0
	}
	if len(refTexts) == 0 {
		return accepted, 0
	}

	marked := classify.MarkLikeSpam(refTexts, accepted, p.newVectorizer(), p.cfg.CrossSpamSimilarity)
	if len(marked) == 0 {
		return accepted, 0
	}

	markedSet := make(map[int]bool, len(marked))
	var moveUIDs []imap.UID
	for _, idx := range marked {
		markedSet[idx] = true
		if uid := accepted[idx].Ref.UID; uid != 0 {
			moveUIDs = append(moveUIDs, uid)
		}
	}
	if len(moveUIDs) > 0 {
		if err := p.sess.MoveUID(moveUIDs, spamFolder); err != nil {
			p.logger.Warn("cross-spam move failed", "error", err)
			return accepted, 0
		}
	}

	survivors := make([]*mailbox.Message, 0, len(accepted)-len(marked))
	for i, msg := range accepted {
		if !markedSet[i] {
			survivors = append(survivors, msg)
		}
	}
	p.logger.Info("cross-spam sweep", "marked", len(marked), "references", len(refTexts))
	return survivors, len(moveUIDs)
}

// SampleFolderMessages fetches up to limit of a folder's most recent
// messages. It satisfies cluster.FolderSampler.
func (p *Pipeline) SampleFolderMessages(folderName string, limit int) ([]*mailbox.Message, error) {
	if _, err := p.sess.Select(folderName, true); err != nil {
		return nil, err
	}
	uids, err := p.sess.UIDSearch(&imap.SearchCriteria{})
	if err != nil {
		return nil, err
	}
	uids = tailUIDs(uids, limit)
	if len(uids) == 0 {
		return nil, nil
	}

	raws, err := p.sess.FetchFullUIDs(uids)
	if err != nil {
		return nil, err
	}
	msgs := make([]*mailbox.Message, 0, len(raws))
	for _, raw := range raws {
		msg, parseErr := mailbox.ParseMessage(raw.Body, mailbox.Ref{UID: raw.UID, SeqNum: raw.SeqNum}, p.logger)
		if parseErr != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (p *Pipeline) sampleFolderTexts(folderName string, limit int) []string {
	msgs, err := p.SampleFolderMessages(folderName, limit)
	if err != nil {
		p.logger.Debug("folder sample failed", "folder", folderName, "error", err)
		return nil
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Content())
	}
	return texts
}

// buildRefs turns the UID candidate list into fetch refs for the given
// strategy. Sequence-based strategies re-search by sequence number and
// take the newest matching slice; the UID-to-sequence pairing is an
// approximation that holds while nothing else mutates the mailbox.
func (p *Pipeline) buildRefs(uids []imap.UID, strategy mailbox.FetchStrategy, limit int) ([]mailbox.Ref, error) {
	switch strategy {
	case mailbox.StrategySequence, mailbox.StrategySafe, mailbox.StrategyRecovery:
		seqs, err := p.sess.SearchAll()
		if err != nil {
			return nil, err
		}
		// Servers answer SEARCH in ascending order; sort defensively
		// because the newest-N slice below depends on it.
		sort.Slice(seqs, func(a, b int) bool { return seqs[a] < seqs[b] })
		if len(seqs) > len(uids) {
			seqs = seqs[len(seqs)-len(uids):]
		}
		refs := make([]mailbox.Ref, len(seqs))
		for i, seq := range seqs {
			refs[i] = mailbox.Ref{SeqNum: seq}
			if strategy == mailbox.StrategyRecovery && len(seqs) == len(uids) {
				refs[i].UID = uids[i]
			}
		}
		if strategy == mailbox.StrategyRecovery && len(seqs) != len(uids) {
			// Pairing broke; fall back to UID-only refs.
			refs = uidRefs(uids)
		}
		return refs, nil
	default:
		return uidRefs(uids), nil
	}
}

func uidRefs(uids []imap.UID) []mailbox.Ref {
	refs := make([]mailbox.Ref, len(uids))
	for i, uid := range uids {
		refs[i] = mailbox.Ref{UID: uid}
	}
	return refs
}

// buildSearchCriteria maps the since options onto IMAP SEARCH criteria.
func buildSearchCriteria(sinceDate time.Time, sinceDays int, now time.Time) *imap.SearchCriteria {
	switch {
	case !sinceDate.IsZero():
		return &imap.SearchCriteria{Since: sinceDate}
	case sinceDays > 0:
		return &imap.SearchCriteria{Since: now.AddDate(0, 0, -sinceDays)}
	default:
		return &imap.SearchCriteria{}
	}
}

// tailUIDs keeps the most recent n entries. UID SEARCH answers in
// ascending order, so the tail is the newest slice.
func tailUIDs(uids []imap.UID, n int) []imap.UID {
	if n > 0 && len(uids) > n {
		return uids[len(uids)-n:]
	}
	return uids
}
