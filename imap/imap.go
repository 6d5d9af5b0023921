package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/grab-receipts-exporter/model"
	"github.com/dhcgn/grab-receipts-exporter/runner"
	"github.com/dhcgn/grab-receipts-exporter/state"
	"github.com/dhcgn/grab-receipts-exporter/stats"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	SubjectFilter      string
}

// Fetcher is the IMAP source stage: it searches the mailbox for receipts
// with a UID strictly greater than the cursor, fetches them in ascending
// UID order and streams them into the pipeline.
type Fetcher struct {
	opts    Options
	runner  *runner.Runner
	tracker state.Tracker
	logger  *slog.Logger
}

func NewFetcher(opts Options, r *runner.Runner, logger *slog.Logger) (*Fetcher, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.Mailbox == "" {
		return nil, fmt.Errorf("imap mailbox is empty")
	}
	tracker := r.Tracker()
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	fetcher := &Fetcher{
		opts:    opts,
		runner:  r,
		tracker: tracker,
		logger:  logger,
	}
	r.AddStage("imap", fetcher.run)
	return fetcher, nil
}

// Connection, login, select and search failures are fatal: without them
// there is no batch. A failed fetch of a single message is not, it is
// reported and the batch continues.
func (f *Fetcher) run(ctx context.Context) error {
	defer f.runner.CloseMailbox()

	client, cleanup, err := f.dial(ctx)
	if err != nil {
		f.runner.EmitEvent(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeError, Err: err})
		return err
	}
	defer cleanup()

	lastUID := f.tracker.LastUID()
	uids, err := f.searchNew(client, lastUID)
	if err != nil {
		f.runner.EmitEvent(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeError, Err: err})
		return err
	}

	if f.logger != nil {
		f.logger.Info("mailbox searched", "mailbox", f.opts.Mailbox, "lastUID", lastUID, "newMessages", len(uids))
	}

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := f.fetchBody(client, uid)
		if err != nil {
			if err := f.emit(ctx, model.Envelope{Err: err}); err != nil {
				return err
			}
			continue
		}

		msg := model.RawMessage{UID: uint32(uid), Size: int64(len(raw)), Raw: raw}
		if err := f.emit(ctx, model.Envelope{Message: msg}); err != nil {
			return err
		}
	}

	return nil
}

func (f *Fetcher) emit(ctx context.Context, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case f.runner.MailboxWriter() <- env:
		return nil
	}
}

func (f *Fetcher) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(f.opts.Host, strconv.Itoa(f.opts.Port))
	options := &imapclient.Options{}

	if f.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         f.opts.Host,
			InsecureSkipVerify: f.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if f.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(f.opts.Username, f.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if f.logger != nil {
		f.logger.Debug("imap connection established", "address", address, "user", f.opts.Username, "mailbox", f.opts.Mailbox, "tls", f.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				if f.logger != nil {
					f.logger.Warn("imap logout failed", "err", err)
				}
			}
		}
		if err := client.Close(); err != nil && f.logger != nil {
			f.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

// searchNew selects the mailbox read-only and returns the UIDs of messages
// strictly newer than the cursor, ascending, optionally narrowed by a
// SUBJECT filter.
func (f *Fetcher) searchNew(client *imapclient.Client, lastUID uint32) ([]imapv2.UID, error) {
	if _, err := client.Select(f.opts.Mailbox, &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", f.opts.Mailbox, err)
	}

	criteria := &imapv2.SearchCriteria{}
	if lastUID > 0 {
		var set imapv2.UIDSet
		set.AddRange(imapv2.UID(lastUID)+1, 0)
		criteria.UID = []imapv2.UIDSet{set}
	}
	if f.opts.SubjectFilter != "" {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{
			Key:   "Subject",
			Value: f.opts.SubjectFilter,
		})
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}

	uids := data.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (f *Fetcher) fetchBody(client *imapclient.Client, uid imapv2.UID) ([]byte, error) {
	fetchOptions := &imapv2.FetchOptions{
		BodySection: []*imapv2.FetchItemBodySection{{}},
	}

	msgs, err := client.Fetch(imapv2.UIDSetNum(uid), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch uid %d: %w", uid, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("fetch uid %d: no data returned", uid)
	}

	for _, section := range msgs[0].BodySection {
		if len(section.Bytes) > 0 {
			return section.Bytes, nil
		}
	}
	return nil, fmt.Errorf("fetch uid %d: empty body", uid)
}
